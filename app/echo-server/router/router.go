package router

import (
	"novafeed/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupFeedRoutes(api *echo.Group, handler *rest.FeedHandler) {
	feed := api.Group("/feed")

	feed.GET("", handler.GetFeed)
	feed.POST("/invalidate", handler.InvalidatePost)
}
