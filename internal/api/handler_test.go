package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzastream/internal/logger"
	"pizzastream/pkg/models"
)

type stubService struct {
	summary models.OrdersSummary
	block   bool
	gotNow  time.Time
}

func (s *stubService) Summary(ctx context.Context, now time.Time) (models.OrdersSummary, error) {
	s.gotNow = now
	if s.block {
		<-ctx.Done()
		return models.OrdersSummary{}, ctx.Err()
	}
	return s.summary, nil
}

func newRouter(svc SummaryService, timeout time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, timeout, logger.NopLogger()).RegisterRoutes(r)
	return r
}

func TestGetOverview(t *testing.T) {
	svc := &stubService{summary: models.OrdersSummary{
		CurrentTimePeriod:  models.TimePeriod{Orders: 1, TotalPrice: decimal.RequireFromString("30")},
		PreviousTimePeriod: models.TimePeriod{Orders: 2, TotalPrice: decimal.RequireFromString("30.5")},
	}}
	r := newRouter(svc, time.Second)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/overview", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"currentTimePeriod": {"orders": 1, "totalPrice": 30},
		"previousTimePeriod": {"orders": 2, "totalPrice": 30.5}
	}`, w.Body.String())
}

func TestGetOverview_At(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, time.Second)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/overview?at=2022-10-17T13:27:35Z", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, time.Date(2022, 10, 17, 13, 27, 35, 0, time.UTC).Equal(svc.gotNow))
}

func TestGetOverview_BadAt(t *testing.T) {
	r := newRouter(&stubService{}, time.Second)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/overview?at=yesterday-ish", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body["error_code"])
}

func TestGetOverview_WaitBoundedByTimeout(t *testing.T) {
	r := newRouter(&stubService{block: true}, 20*time.Millisecond)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/overview", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "STATE_NOT_READY")
}

type failingService struct{ err error }

func (s failingService) Summary(context.Context, time.Time) (models.OrdersSummary, error) {
	return models.OrdersSummary{}, s.err
}

func TestGetOverview_ServiceDeadlineIsNotNotReady(t *testing.T) {
	// a deadline from below the handler is an internal failure
	r := newRouter(failingService{err: context.DeadlineExceeded}, time.Minute)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/overview", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "STATE_NOT_READY")
}
