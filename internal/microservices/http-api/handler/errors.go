package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cinehub/internal/gateway"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/titlesync"
)

const requestTimeout = 5 * time.Second

// respondError maps domain and gateway errors onto status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrEmptyListName),
		errors.Is(err, service.ErrDeleteNotConfirmed):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrMissingUser):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrTitleNotFound),
		errors.Is(err, titlesync.ErrTitleNotFound),
		errors.Is(err, service.ErrListNotFound),
		errors.Is(err, service.ErrRatingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrConflict):
		status = http.StatusConflict
	case gateway.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// currentUser returns the id set by middleware.AuthMiddleware.
func currentUser(c *gin.Context) (string, bool) {
	v, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return "", false
	}
	return id, true
}
