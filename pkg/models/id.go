package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque identity. Upstream producers are inconsistent about ids:
// orders carry strings while the catalog changelog carries numbers, so both
// JSON forms decode to the same value.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: must be a string or a number", string(data))
	}
	*id = ID(n.String())
	return nil
}
