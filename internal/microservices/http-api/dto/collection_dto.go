package dto

import (
	"time"

	"cinehub/internal/models"
)

// SubmitRatingRequest: payload for POST /api/titles/:id/rating
type SubmitRatingRequest struct {
	Rating int `json:"rating" binding:"required"`
}

type RatingResponse struct {
	TitleID string  `json:"title_id"`
	Rating  int     `json:"rating"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Warning string  `json:"warning,omitempty"`
}

type UserRatingResponse struct {
	TitleID   string    `json:"title_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

func FromUserRatings(ratings []models.UserRating) []UserRatingResponse {
	out := make([]UserRatingResponse, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, UserRatingResponse{TitleID: r.TitleID, Rating: r.Rating, CreatedAt: r.CreatedAt})
	}
	return out
}

// AddToWatchlistRequest: payload for POST /api/watchlist
type AddToWatchlistRequest struct {
	TitleID string `json:"title_id" binding:"required"`
}

type WatchlistItemResponse struct {
	TitleID string         `json:"title_id"`
	AddedAt time.Time      `json:"added_at"`
	Title   *TitleResponse `json:"title,omitempty"`
}

type WatchlistResponse struct {
	Items []WatchlistItemResponse `json:"items"`
	Total int                     `json:"total"`
}

// OutcomeResponse reports an add that may already have been in place.
type OutcomeResponse struct {
	Outcome string `json:"outcome"`
}

// CreateListRequest: payload for POST /api/lists
type CreateListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// AddListItemRequest: payload for POST /api/lists/:list_id/items
type AddListItemRequest struct {
	TitleID string `json:"title_id" binding:"required"`
}

type ListResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromUserList(l models.UserList) ListResponse {
	return ListResponse{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		IsPublic:    l.IsPublic,
		CreatedAt:   l.CreatedAt,
	}
}

type ListItemResponse struct {
	TitleID  string    `json:"title_id"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}

func FromListItems(items []models.ListItem) []ListItemResponse {
	out := make([]ListItemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, ListItemResponse{TitleID: i.TitleID, Position: i.Position, AddedAt: i.CreatedAt})
	}
	return out
}
