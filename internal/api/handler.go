// Package api serves the order overview read by the dashboard.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pizzastream/internal/constants"
	"pizzastream/internal/logger"
	apperrors "pizzastream/pkg/errors"
	"pizzastream/pkg/models"
)

type SummaryService interface {
	Summary(ctx context.Context, now time.Time) (models.OrdersSummary, error)
}

type Handler struct {
	Service SummaryService
	Logger  logger.Logger
	Timeout time.Duration
	now     func() time.Time
}

func NewHandler(service SummaryService, timeout time.Duration, log logger.Logger) *Handler {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Handler{
		Service: service,
		Logger:  log,
		Timeout: timeout,
		now:     time.Now,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.GET("/overview", h.GetOverview)
		}
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
}

// GetOverview returns order count and revenue for the last minute and the
// minute before it. The optional "at" query parameter replaces the current
// time and accepts any common timestamp layout.
func (h *Handler) GetOverview(c *gin.Context) {
	now := h.now()
	if at := c.Query("at"); at != "" {
		ts, err := models.ParseTimestamp(at)
		if err != nil {
			h.HandleError(c, apperrors.ErrValidation.WithCause(err).WithDetail("at", at))
			return
		}
		now = ts.Time
	}

	// Summary waits for window state without limit; the request does not.
	// A wait cut short by Timeout is reported as 503 so clients retry.
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
	defer cancel()

	summary, err := h.Service.Summary(ctx, now)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = apperrors.ErrStateNotReady.WithCause(err)
		}
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
