package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
	"novafeed/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

type (
	FeedHandler struct {
		validate    *validator.Validate
		feedService FeedService
	}

	FeedService interface {
		RankFeed(ctx context.Context, userID string, limit int, cursor string) (domain.FeedPage, error)
		InvalidatePost(ctx context.Context, postID string) error
	}

	FeedQuery struct {
		UserID string `query:"user_id" validate:"required"`
		Limit  int    `query:"limit"`
		Cursor string `query:"cursor"`
	}

	InvalidateRequest struct {
		PostID string `json:"post_id" validate:"required"`
	}
)

func NewFeedHandler(svc FeedService) *FeedHandler {
	return &FeedHandler{
		validate:    validator.New(),
		feedService: svc,
	}
}

// GET /api/v1/feed?user_id=&limit=&cursor=
func (h *FeedHandler) GetFeed(c echo.Context) error {
	start := time.Now()

	var q FeedQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	page, err := h.feedService.RankFeed(c.Request().Context(), q.UserID, q.Limit, q.Cursor)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		if errors.Is(err, domain.ErrAllSourcesUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "feed temporarily unavailable"})
		}
		logger.Error("rank feed failed", "user_id", q.UserID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "internal error"})
	}

	metrics.FeedRankRequests.Inc()
	metrics.FeedRankLatency.Observe(time.Since(start).Seconds())

	return c.JSON(http.StatusOK, fres.Response.StatusOK(page))
}

// POST /api/v1/feed/invalidate
func (h *FeedHandler) InvalidatePost(c echo.Context) error {
	var req InvalidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.feedService.InvalidatePost(c.Request().Context(), req.PostID); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		logger.Error("invalidate post failed", "post_id", req.PostID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "internal error"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("invalidated"))
}
