package dto

import (
	"time"

	"cinehub/internal/models"
)

// TitleResponse is a catalog entry as shown to clients; Rating is rounded
// to one decimal.
type TitleResponse struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Year          int                `json:"year"`
	Type          models.TitleType   `json:"type"`
	Duration      *int               `json:"duration,omitempty"`
	Rating        float64            `json:"rating"`
	RatingCount   int                `json:"rating_count"`
	ViewCount     int                `json:"view_count"`
	Genres        []string           `json:"genres"`
	Moods         []string           `json:"moods"`
	Tags          []string           `json:"tags"`
	Description   string             `json:"description"`
	Logline       string             `json:"logline"`
	PosterURL     string             `json:"poster_url"`
	TrailerURL    *string            `json:"trailer_url,omitempty"`
	Status        models.TitleStatus `json:"status"`
	AIModel       string             `json:"ai_model"`
	DominantColor *string            `json:"dominant_color,omitempty"`
	TrendingScore *float64           `json:"trending_score,omitempty"`
	Seasons       *int               `json:"seasons,omitempty"`
	TotalEpisodes *int               `json:"total_episodes,omitempty"`
	ReleaseDate   time.Time          `json:"release_date"`
	CreatedAt     time.Time          `json:"created_at"`
}

type TitleListResponse struct {
	Items []TitleResponse `json:"items"`
	Total int             `json:"total"`
	Stale bool            `json:"stale"`
}

func FromTitle(t models.Title) TitleResponse {
	return TitleResponse{
		ID:            t.ID,
		Title:         t.Title,
		Year:          t.Year,
		Type:          t.Type,
		Duration:      t.Duration,
		Rating:        t.DisplayRating(),
		RatingCount:   t.RatingCount,
		ViewCount:     t.ViewCount,
		Genres:        t.Genres,
		Moods:         t.Moods,
		Tags:          t.Tags,
		Description:   t.Description,
		Logline:       t.Logline,
		PosterURL:     t.PosterURL,
		TrailerURL:    t.TrailerURL,
		Status:        t.Status,
		AIModel:       t.AIModel,
		DominantColor: t.DominantColor,
		TrendingScore: t.TrendingScore,
		Seasons:       t.Seasons,
		TotalEpisodes: t.TotalEpisodes,
		ReleaseDate:   t.ReleaseDate,
		CreatedAt:     t.CreatedAt,
	}
}

func FromTitles(titles []models.Title) []TitleResponse {
	out := make([]TitleResponse, 0, len(titles))
	for _, t := range titles {
		out = append(out, FromTitle(t))
	}
	return out
}
