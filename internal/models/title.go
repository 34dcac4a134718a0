package models

import (
	"math"
	"time"
)

// TitleType is the kind of catalog entry
type TitleType string

const (
	TypeMovie  TitleType = "movie"
	TypeSeries TitleType = "series"
	TypeShort  TitleType = "short"
)

// TitleStatus is the publication status of a title
type TitleStatus string

const (
	StatusPending    TitleStatus = "pending"
	StatusProcessing TitleStatus = "processing"
	StatusCompleted  TitleStatus = "completed" // only completed titles are visible while browsing
)

const (
	DefaultPosterURL = "/placeholder.svg"
	DefaultAIModel   = "Unknown"
)

// table names on the remote gateway
const (
	TableTitles    = "titles"
	TableRatings   = "ratings"
	TableWatchlist = "watchlist"
	TableLists     = "user_lists"
	TableListItems = "list_items"
	TableProfiles  = "profiles"
)

// Title is one catalog entry (movie, series or short) as held in memory.
// Slices are never nil once a Title came out of FromRow.
type Title struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Year        int         `json:"year"`
	Type        TitleType   `json:"type"`
	Duration    *int        `json:"duration,omitempty"` // minutes, movie/short only
	Rating      float64     `json:"rating"`
	RatingCount int         `json:"rating_count"`
	ViewCount   int         `json:"view_count"`
	Genres      []string    `json:"genres"`
	Moods       []string    `json:"moods"`
	Description string      `json:"description"`
	Logline     string      `json:"logline"`
	PosterURL   string      `json:"poster_url"`
	TrailerURL  *string     `json:"trailer_url,omitempty"`
	Status      TitleStatus `json:"status"`

	// filled by a separate people join, never by the mapper
	DirectorIDs []string `json:"director_ids"`
	ProducerIDs []string `json:"producer_ids"`
	WriterIDs   []string `json:"writer_ids"`
	CastIDs     []string `json:"cast_ids"`

	ProductionCompany string    `json:"production_company"`
	AIModel           string    `json:"ai_model"`
	AIPrompt          *string   `json:"ai_prompt,omitempty"`
	GenerationDate    time.Time `json:"generation_date"`

	Tags          []string  `json:"tags"`
	DominantColor *string   `json:"dominant_color,omitempty"`
	TrendingScore *float64  `json:"trending_score,omitempty"`
	ReleaseDate   time.Time `json:"release_date"`
	CreatedAt     time.Time `json:"created_at"`

	Seasons       *int `json:"seasons,omitempty"`
	TotalEpisodes *int `json:"total_episodes,omitempty"`

	// analysis pipeline output
	AICineDBFilmID   *string        `json:"aicinedb_film_id,omitempty"`
	StyleFingerprint map[string]any `json:"style_fingerprint,omitempty"`
	ShotCount        int            `json:"shot_count"`
	CharacterCount   int            `json:"character_count"`
	SceneCount       int            `json:"scene_count"`
}

// Visible reports whether the title may appear in ordinary browsing.
func (t Title) Visible() bool {
	return t.Status == StatusCompleted
}

// DisplayRating is the mean rating rounded to one decimal place.
func (t Title) DisplayRating() float64 {
	return math.Round(t.Rating*10) / 10
}

// Clone returns a deep copy so callers can never alias the store's slices.
func (t Title) Clone() Title {
	c := t
	c.Genres = cloneStrings(t.Genres)
	c.Moods = cloneStrings(t.Moods)
	c.Tags = cloneStrings(t.Tags)
	c.DirectorIDs = cloneStrings(t.DirectorIDs)
	c.ProducerIDs = cloneStrings(t.ProducerIDs)
	c.WriterIDs = cloneStrings(t.WriterIDs)
	c.CastIDs = cloneStrings(t.CastIDs)
	c.Duration = clonePtr(t.Duration)
	c.TrailerURL = clonePtr(t.TrailerURL)
	c.AIPrompt = clonePtr(t.AIPrompt)
	c.DominantColor = clonePtr(t.DominantColor)
	c.TrendingScore = clonePtr(t.TrendingScore)
	c.Seasons = clonePtr(t.Seasons)
	c.TotalEpisodes = clonePtr(t.TotalEpisodes)
	c.AICineDBFilmID = clonePtr(t.AICineDBFilmID)
	if t.StyleFingerprint != nil {
		c.StyleFingerprint = make(map[string]any, len(t.StyleFingerprint))
		for k, v := range t.StyleFingerprint {
			c.StyleFingerprint[k] = v
		}
	}
	return c
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
