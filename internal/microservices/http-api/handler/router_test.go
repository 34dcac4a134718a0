package handler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinehub/internal/gateway"
	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/handler"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/models"
	"cinehub/internal/session"
	"cinehub/internal/titlesync"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiFixture struct {
	gw        *gateway.Memory
	store     *titlesync.Store
	authority *session.Authority
	router    *gin.Engine
}

func seedCatalog(gw *gateway.Memory) {
	gw.Seed(models.TableTitles,
		gateway.Row{
			"id": "t1", "title": "Dune", "type": "movie", "status": "completed",
			"created_at": "2024-03-01T00:00:00Z", "trending_score": 9.5,
			"genres": []string{"sci-fi"},
		},
		gateway.Row{
			"id": "t2", "title": "Severance", "type": "series", "status": "completed",
			"created_at": "2024-02-01T00:00:00Z", "trending_score": 7.0,
			"rating_average": 8.5, "rating_count": 2,
		},
		gateway.Row{
			"id": "t3", "title": "Rough Cut", "type": "movie", "status": "pending",
			"created_at": "2024-04-01T00:00:00Z",
		},
	)
}

func newFixture(t *testing.T, initialize bool) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := gateway.NewMemory()
	seedCatalog(gw)

	store := titlesync.NewStore(gw, titlesync.WithLogger(quietLogger()))
	t.Cleanup(func() { store.Close() })
	if initialize {
		ctx := context.Background()
		require.NoError(t, store.Initialize(ctx))
		require.NoError(t, store.SubscribeToChanges(ctx))
	}

	logger := quietLogger()
	authority := session.NewAuthority(testSecret, "cinehub-test", time.Hour)
	router := handler.NewRouter(handler.RouterDeps{
		Store:     store,
		Ratings:   service.NewRatingService(gw, logger),
		Watchlist: service.NewWatchlistService(gw, logger),
		Lists:     service.NewListService(gw, logger),
		Stats:     service.NewStatsService(gw),
		Authority: authority,
		Logger:    logger,
	})
	return &apiFixture{gw: gw, store: store, authority: authority, router: router}
}

func (f *apiFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := f.authority.Issue(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func ids(items []dto.TitleResponse) []string {
	out := make([]string, 0, len(items))
	for _, i := range items {
		out = append(out, i.ID)
	}
	return out
}

func TestTitles_NotReadyIs503(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/titles", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTitles_ListAndViews(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"recent", "/api/titles", []string{"t1", "t2"}},
		{"by type", "/api/titles?type=series", []string{"t2"}},
		{"top rated", "/api/titles?sort=top_rated", []string{"t2"}},
		{"trending", "/api/titles?sort=trending&limit=1", []string{"t1"}},
		{"search", "/api/titles?q=sci", []string{"t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, nil, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[dto.TitleListResponse](t, w)
			assert.Equal(t, tt.want, ids(resp.Items))
			assert.Equal(t, len(tt.want), resp.Total)
			assert.False(t, resp.Stale)
		})
	}
}

func TestTitles_RejectsBadQuery(t *testing.T) {
	f := newFixture(t, true)

	for _, path := range []string{
		"/api/titles?sort=random",
		"/api/titles?type=podcast",
		"/api/titles?limit=zero",
	} {
		w := f.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestTitles_GetOne(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/titles/t1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dune", decode[dto.TitleResponse](t, w).Title)

	// pending titles are not browsable even by id
	w = f.do(t, http.MethodGet, "/api/titles/t3", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/titles/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, true)

	for _, path := range []string{"/api/watchlist", "/api/lists", "/api/me/ratings", "/api/admin/stats"} {
		w := f.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := f.do(t, http.MethodGet, "/api/watchlist", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRating_SubmitUpdatesCatalog(t *testing.T) {
	f := newFixture(t, true)
	tok := f.token(t, "u1", "")

	w := f.do(t, http.MethodPost, "/api/titles/t1/rating", dto.SubmitRatingRequest{Rating: 8}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.RatingResponse](t, w)
	assert.Equal(t, 8, resp.Rating)
	assert.Equal(t, 1, resp.Count)
	assert.InDelta(t, 8.0, resp.Average, 1e-9)

	assert.Eventually(t, func() bool {
		got, ok := f.store.Get("t1")
		return ok && got.RatingCount == 1
	}, 2*time.Second, 5*time.Millisecond)

	w = f.do(t, http.MethodGet, "/api/titles/t1/rating", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8, decode[dto.UserRatingResponse](t, w).Rating)

	w = f.do(t, http.MethodGet, "/api/me/ratings", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title_id":"t1"`)
}

func TestRating_Validation(t *testing.T) {
	f := newFixture(t, true)
	tok := f.token(t, "u1", "")

	w := f.do(t, http.MethodPost, "/api/titles/t1/rating", dto.SubmitRatingRequest{Rating: 11}, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/titles/nope/rating", dto.SubmitRatingRequest{Rating: 5}, tok)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/titles/t2/rating", nil, tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRating_GatewayDownIs503(t *testing.T) {
	f := newFixture(t, true)
	f.gw.SetFailure(gateway.OpUpsert, models.TableRatings, gateway.ErrUnavailable)

	w := f.do(t, http.MethodPost, "/api/titles/t1/rating", dto.SubmitRatingRequest{Rating: 5}, f.token(t, "u1", ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"retryable":true`)
}

func TestRating_StaleAggregateIs202(t *testing.T) {
	f := newFixture(t, true)
	f.gw.SetFailure(gateway.OpUpdate, models.TableTitles, gateway.ErrUnavailable)

	w := f.do(t, http.MethodPost, "/api/titles/t1/rating", dto.SubmitRatingRequest{Rating: 6}, f.token(t, "u1", ""))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decode[dto.RatingResponse](t, w)
	assert.Equal(t, 6, resp.Rating)
	assert.NotEmpty(t, resp.Warning)
}

func TestWatchlist_Flow(t *testing.T) {
	f := newFixture(t, true)
	tok := f.token(t, "u1", "")

	w := f.do(t, http.MethodPost, "/api/watchlist", dto.AddToWatchlistRequest{TitleID: "t2"}, tok)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, string(service.AddedToWatchlist), decode[dto.OutcomeResponse](t, w).Outcome)

	w = f.do(t, http.MethodPost, "/api/watchlist", dto.AddToWatchlistRequest{TitleID: "t2"}, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(service.AlreadyInWatchlist), decode[dto.OutcomeResponse](t, w).Outcome)

	w = f.do(t, http.MethodGet, "/api/watchlist", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.WatchlistResponse](t, w)
	require.Equal(t, 1, list.Total)
	require.NotNil(t, list.Items[0].Title)
	assert.Equal(t, "Severance", list.Items[0].Title.Title)

	w = f.do(t, http.MethodDelete, "/api/watchlist/t2", nil, tok)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/api/watchlist", map[string]string{}, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLists_Flow(t *testing.T) {
	f := newFixture(t, true)
	owner := f.token(t, "u1", "")
	other := f.token(t, "u2", "")

	w := f.do(t, http.MethodPost, "/api/lists", dto.CreateListRequest{Name: "  "}, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/lists", dto.CreateListRequest{Name: "Weekend"}, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	list := decode[dto.ListResponse](t, w)
	require.NotEmpty(t, list.ID)
	assert.False(t, list.IsPublic)

	items := "/api/lists/" + list.ID + "/items"
	w = f.do(t, http.MethodPost, items, dto.AddListItemRequest{TitleID: "t1"}, owner)
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(t, http.MethodPost, items, dto.AddListItemRequest{TitleID: "t1"}, owner)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, items, nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title_id":"t1"`)

	// private lists are invisible to other users
	w = f.do(t, http.MethodGet, items, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/api/lists/"+list.ID, nil, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/lists/"+list.ID+"?confirm=true", nil, owner)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/lists", nil, owner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t, true)
	f.gw.Seed(models.TableProfiles, gateway.Row{"id": "u1"}, gateway.Row{"id": "u2"})

	w := f.do(t, http.MethodGet, "/api/admin/stats", nil, f.token(t, "u1", ""))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/stats", nil, f.token(t, "root", session.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[service.Stats](t, w)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(3), stats.Titles)
	assert.Equal(t, int64(0), stats.Ratings)
}

func TestSync_StatusAndResync(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/sync/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[titlesync.Status](t, w)
	assert.True(t, status.Ready)
	assert.Equal(t, 2, status.Titles)

	w = f.do(t, http.MethodPost, "/api/sync/resync", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	f.gw.SetFailure(gateway.OpList, models.TableTitles, gateway.ErrUnavailable)
	w = f.do(t, http.MethodPost, "/api/sync/resync", nil, f.token(t, "u1", ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// the previous snapshot keeps serving
	w = f.do(t, http.MethodGet, "/api/titles", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	f.gw.SetFailure(gateway.OpList, models.TableTitles, nil)
	w = f.do(t, http.MethodPost, "/api/sync/resync", nil, f.token(t, "u1", ""))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
