package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/models"
)

// TitleLookup resolves a title id against the in-memory collection.
type TitleLookup interface {
	Get(id string) (models.Title, bool)
}

type WatchlistHandler struct {
	svc    service.WatchlistService
	titles TitleLookup
}

func NewWatchlistHandler(svc service.WatchlistService, titles TitleLookup) *WatchlistHandler {
	return &WatchlistHandler{svc: svc, titles: titles}
}

func (h *WatchlistHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Add)
	rg.DELETE("/:title_id", h.Remove)
}

// Add puts a title on the caller's watchlist. Adding it twice is not an
// error; the outcome says which case happened.
func (h *WatchlistHandler) Add(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.AddToWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	outcome, err := h.svc.Add(ctx, userID, req.TitleID)
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusCreated
	if outcome == service.AlreadyInWatchlist {
		code = http.StatusOK
	}
	c.JSON(code, dto.OutcomeResponse{Outcome: string(outcome)})
}

// List returns the caller's watchlist, newest first. Entries whose title is
// in the collection carry it inline.
func (h *WatchlistHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	entries, err := h.svc.List(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.WatchlistItemResponse, 0, len(entries))
	for _, e := range entries {
		item := dto.WatchlistItemResponse{TitleID: e.TitleID, AddedAt: e.CreatedAt}
		if t, found := h.titles.Get(e.TitleID); found {
			resp := dto.FromTitle(t)
			item.Title = &resp
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, dto.WatchlistResponse{Items: items, Total: len(items)})
}

func (h *WatchlistHandler) Remove(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.svc.Remove(ctx, userID, c.Param("title_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
