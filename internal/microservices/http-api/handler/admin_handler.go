package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/service"
)

type AdminHandler struct {
	stats service.StatsService
}

func NewAdminHandler(stats service.StatsService) *AdminHandler {
	return &AdminHandler{stats: stats}
}

// RegisterRoutes expects rg to already require an admin session.
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Stats)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	stats, err := h.stats.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
