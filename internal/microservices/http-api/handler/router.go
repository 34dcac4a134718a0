package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/middleware"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/microservices/websocket"
	"cinehub/internal/session"
)

// TitleStore is everything the API needs from the synchronized store.
type TitleStore interface {
	TitleReader
	Syncer
	TitleLookup
}

type RouterDeps struct {
	Store     TitleStore
	Ratings   service.RatingService
	Watchlist service.WatchlistService
	Lists     service.ListService
	Stats     service.StatsService
	Authority *session.Authority

	// optional
	Hub     *websocket.Hub
	Metrics http.Handler
	Origins []string
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with every API route mounted.
func NewRouter(d RouterDeps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sync": d.Store.Status()})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	auth := middleware.AuthMiddleware(d.Authority)
	api := r.Group("/api")

	titles := api.Group("/titles")
	if d.Hub != nil {
		titles.GET("/stream", websocket.WSHandler(d.Hub, d.Origins, d.Store.Status))
	}
	NewTitleHandler(d.Store).RegisterRoutes(titles)
	NewRatingHandler(d.Ratings).RegisterRoutes(api, auth)
	NewSyncHandler(d.Store).RegisterRoutes(api.Group("/sync"), auth)

	NewWatchlistHandler(d.Watchlist, d.Store).RegisterRoutes(api.Group("/watchlist", auth))
	NewListHandler(d.Lists).RegisterRoutes(api.Group("/lists", auth))
	NewAdminHandler(d.Stats).RegisterRoutes(api.Group("/admin", auth, middleware.RequireAdmin()))

	return r
}
