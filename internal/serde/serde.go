// Package serde converts between Kafka record payloads and models. Every
// decode failure is an errors.ErrMalformedRecord, which the broker never
// retries.
package serde

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pizzastream/internal/constants"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

// Codec is stateless and safe for concurrent use.
type Codec struct{}

// ForFormat returns the codec for a configured serialization format. Only
// JSON is produced and consumed by the pipelines.
func ForFormat(format string) (*Codec, error) {
	switch format {
	case "", constants.SerdeFormatJSON:
		return &Codec{}, nil
	default:
		return nil, apperrors.ErrValidation.WithDetail("serde_format", format)
	}
}

func malformed(kind string, err error) error {
	return apperrors.Wrap(fmt.Errorf("decode %s: %w", kind, err), apperrors.ErrMalformedRecord)
}

func (c *Codec) DecodeOrder(data []byte) (models.Order, error) {
	var o models.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return models.Order{}, malformed("order", err)
	}
	if err := models.ValidateOrder(&o); err != nil {
		return models.Order{}, malformed("order", err)
	}
	return o, nil
}

func (c *Codec) DecodeOrderStatus(data []byte) (models.OrderStatus, error) {
	var s models.OrderStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return models.OrderStatus{}, malformed("order status", err)
	}
	if err := models.ValidateOrderStatus(&s); err != nil {
		return models.OrderStatus{}, malformed("order status", err)
	}
	return s, nil
}

// changeEvent is a Debezium change event, with or without the schema
// wrapper.
type changeEvent struct {
	Before  *models.Product `json:"before"`
	After   *models.Product `json:"after"`
	Op      string          `json:"op"`
	Payload *changeEvent    `json:"payload"`
}

type keyDoc struct {
	ID      models.ID `json:"id"`
	Payload *keyDoc   `json:"payload"`
}

// DecodeProduct reads one catalog changelog record. A nil product means the
// row identified by id was deleted. Plain product JSON is accepted as an
// upsert.
func (c *Codec) DecodeProduct(key, value []byte) (models.ID, *models.Product, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		id, err := decodeProductKey(key)
		if err != nil {
			return "", nil, err
		}
		return id, nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(value, &raw); err != nil {
		return "", nil, malformed("product", err)
	}

	_, hasAfter := raw["after"]
	_, hasBefore := raw["before"]
	_, hasPayload := raw["payload"]
	if !hasAfter && !hasBefore && !hasPayload {
		var p models.Product
		if err := json.Unmarshal(value, &p); err != nil {
			return "", nil, malformed("product", err)
		}
		if err := models.ValidateProduct(&p); err != nil {
			return "", nil, malformed("product", err)
		}
		return p.ID, &p, nil
	}

	var ev changeEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return "", nil, malformed("product", err)
	}
	if ev.Payload != nil {
		ev = *ev.Payload
	}

	if ev.After != nil {
		if err := models.ValidateProduct(ev.After); err != nil {
			return "", nil, malformed("product", err)
		}
		return ev.After.ID, ev.After, nil
	}

	if ev.Before != nil && ev.Before.ID != "" {
		return ev.Before.ID, nil, nil
	}
	id, err := decodeProductKey(key)
	if err != nil {
		return "", nil, err
	}
	return id, nil, nil
}

func decodeProductKey(key []byte) (models.ID, error) {
	key = bytes.TrimSpace(key)
	if len(key) == 0 {
		return "", malformed("product key", fmt.Errorf("empty key"))
	}

	if key[0] != '{' {
		var id models.ID
		if err := json.Unmarshal(key, &id); err == nil && id != "" {
			return id, nil
		}
		return models.ID(key), nil
	}

	var doc keyDoc
	if err := json.Unmarshal(key, &doc); err != nil {
		return "", malformed("product key", err)
	}
	if doc.Payload != nil {
		doc = *doc.Payload
	}
	if doc.ID == "" {
		return "", malformed("product key", fmt.Errorf("missing id"))
	}
	return doc.ID, nil
}

func (c *Codec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}
