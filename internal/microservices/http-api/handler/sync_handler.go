package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinehub/internal/gateway"
	"cinehub/internal/titlesync"
)

// Syncer reloads the collection on demand.
type Syncer interface {
	Initialize(ctx context.Context) error
	Status() titlesync.Status
}

type SyncHandler struct {
	store Syncer
}

func NewSyncHandler(store Syncer) *SyncHandler {
	return &SyncHandler{store: store}
}

// RegisterRoutes mounts status publicly; resync needs auth, passed in by the
// router.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.GET("/status", h.Status)
	rg.POST("/resync", auth, h.Resync)
}

func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Status())
}

// Resync reloads the snapshot. The store keeps serving the previous one if
// the reload fails.
func (h *SyncHandler) Resync(c *gin.Context) {
	if err := h.store.Initialize(c.Request.Context()); err != nil {
		status := h.store.Status()
		code := http.StatusInternalServerError
		if status.Retryable || gateway.IsTransient(err) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"error": err.Error(), "status": status})
		return
	}
	c.JSON(http.StatusOK, h.store.Status())
}
