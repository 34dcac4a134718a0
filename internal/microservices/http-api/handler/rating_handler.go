package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/service"
)

type RatingHandler struct {
	svc service.RatingService
}

func NewRatingHandler(svc service.RatingService) *RatingHandler {
	return &RatingHandler{svc: svc}
}

// RegisterRoutes mounts the rating routes on the /api group. Every route
// requires auth.
func (h *RatingHandler) RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc) {
	api.POST("/titles/:id/rating", auth, h.Submit)
	api.GET("/titles/:id/rating", auth, h.Get)
	api.GET("/me/ratings", auth, h.Mine)
}

// Submit stores the caller's rating. A saved rating whose aggregate could not
// be refreshed is answered with 202 and a warning.
func (h *RatingHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	titleID := c.Param("id")
	res, err := h.svc.SubmitRating(ctx, userID, titleID, req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.RatingResponse{
		TitleID: titleID,
		Rating:  res.Rating.Rating,
		Average: res.Average,
		Count:   res.Count,
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RatingHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	r, err := h.svc.GetUserRating(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserRatingResponse{TitleID: r.TitleID, Rating: r.Rating, CreatedAt: r.CreatedAt})
}

// Mine lists the caller's ratings.
func (h *RatingHandler) Mine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ratings, err := h.svc.ListUserRatings(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": dto.FromUserRatings(ratings), "total": len(ratings)})
}
