package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/service"
)

type ListHandler struct {
	svc service.ListService
}

func NewListHandler(svc service.ListService) *ListHandler {
	return &ListHandler{svc: svc}
}

func (h *ListHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Lists)
	rg.POST("", h.Create)
	rg.DELETE("/:list_id", h.Delete)
	rg.GET("/:list_id/items", h.Items)
	rg.POST("/:list_id/items", h.AddItem)
	rg.DELETE("/:list_id/items/:title_id", h.RemoveItem)
}

func (h *ListHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	list, err := h.svc.Create(ctx, userID, service.NewList{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromUserList(*list))
}

// Delete removes a list and its items. The caller must pass confirm=true.
func (h *ListHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	intent := service.DeleteUnconfirmed
	if confirmed, _ := strconv.ParseBool(c.Query("confirm")); confirmed {
		intent = service.DeleteConfirmed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.svc.Delete(ctx, userID, c.Param("list_id"), intent); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ListHandler) Lists(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	lists, err := h.svc.Lists(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.ListResponse, 0, len(lists))
	for _, l := range lists {
		items = append(items, dto.FromUserList(l))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *ListHandler) Items(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.svc.Items(ctx, userID, c.Param("list_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": dto.FromListItems(items), "total": len(items)})
}

func (h *ListHandler) AddItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.AddListItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	outcome, err := h.svc.AddItem(ctx, userID, c.Param("list_id"), req.TitleID)
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusCreated
	if outcome == service.AlreadyInList {
		code = http.StatusOK
	}
	c.JSON(code, dto.OutcomeResponse{Outcome: string(outcome)})
}

func (h *ListHandler) RemoveItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.svc.RemoveItem(ctx, userID, c.Param("list_id"), c.Param("title_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
