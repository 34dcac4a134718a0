package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/models"
	"cinehub/internal/titlesync"
)

const (
	defaultTitleLimit = 50
	maxTitleLimit     = 200
)

// TitleReader is the read side of the synchronized title store.
type TitleReader interface {
	Snapshot() []models.Title
	Trending(limit int) []models.Title
	TopRated(limit int) []models.Title
	ByType(kind models.TitleType, limit int) []models.Title
	Search(query string, limit int) []models.Title
	Fetch(ctx context.Context, id string) (models.Title, error)
	Status() titlesync.Status
}

type TitleHandler struct {
	titles TitleReader
}

func NewTitleHandler(titles TitleReader) *TitleHandler {
	return &TitleHandler{titles: titles}
}

func (h *TitleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

// List serves the catalog from the in-memory collection.
// Query: type=movie|series|short, sort=recent|trending|top_rated, limit, q.
func (h *TitleHandler) List(c *gin.Context) {
	status := h.titles.Status()
	if !status.Ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "catalog is not loaded yet",
			"retryable": true,
			"status":    status,
		})
		return
	}

	limit := defaultTitleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxTitleLimit)
	}

	var kind models.TitleType
	if raw := c.Query("type"); raw != "" {
		kind = models.TitleType(strings.ToLower(raw))
		switch kind {
		case models.TypeMovie, models.TypeSeries, models.TypeShort:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
			return
		}
	}

	var titles []models.Title
	switch sortBy := c.DefaultQuery("sort", "recent"); {
	case c.Query("q") != "":
		titles = h.titles.Search(c.Query("q"), 0)
	case sortBy == "recent" && kind != "":
		titles = h.titles.ByType(kind, limit)
	case sortBy == "recent":
		titles = h.titles.Snapshot()
	case sortBy == "trending":
		titles = h.titles.Trending(0)
	case sortBy == "top_rated":
		titles = h.titles.TopRated(0)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of recent, trending, top_rated"})
		return
	}

	if kind != "" {
		filtered := titles[:0:0]
		for _, t := range titles {
			if t.Type == kind {
				filtered = append(filtered, t)
			}
		}
		titles = filtered
	}
	if len(titles) > limit {
		titles = titles[:limit]
	}

	items := dto.FromTitles(titles)
	c.JSON(http.StatusOK, dto.TitleListResponse{
		Items: items,
		Total: len(items),
		Stale: status.Stale,
	})
}

// Get returns one visible title, falling back to the gateway when the
// collection does not hold it.
func (h *TitleHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	t, err := h.titles.Fetch(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTitle(t))
}
