package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinehub/internal/microservices/http-api/middleware"
	"cinehub/internal/session"
)

const secret = "0123456789abcdef0123456789abcdef"

func protectedRouter(authority *session.Authority, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{middleware.AuthMiddleware(authority)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		userID, _ := session.UserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("userID"), "ctx_user": userID})
	})
	r.GET("/me", chain...)
	return r
}

func get(h http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	authority := session.NewAuthority(secret, "", time.Hour)
	r := protectedRouter(authority)

	tok, err := authority.Issue("u1", "u1@example.com", "")
	require.NoError(t, err)

	w := get(r, "/me", "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u1","ctx_user":"u1"}`, w.Body.String())

	other := session.NewAuthority("another-secret-another-secret-xx", "", time.Hour)
	forged, err := other.Issue("u1", "", "")
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic " + tok,
		"no token":     "Bearer ",
		"forged":       "Bearer " + forged,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(r, "/me", header).Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	authority := session.NewAuthority(secret, "", time.Hour)
	r := protectedRouter(authority, middleware.RequireAdmin())

	user, err := authority.Issue("u1", "", "")
	require.NoError(t, err)
	admin, err := authority.Issue("root", "", session.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/me", "Bearer "+user).Code)
	assert.Equal(t, http.StatusOK, get(r, "/me", "Bearer "+admin).Code)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS([]string{"https://app.example"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/watchlist", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitByIP(t *testing.T) {
	h := middleware.RateLimitByIP(2, time.Minute)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own budget
	req := httptest.NewRequest(http.MethodGet, "/api/titles", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := middleware.RateLimitByIP(0, time.Minute)(okHandler())
	for range 5 {
		assert.Equal(t, http.StatusOK, get(h, "/", "").Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	get(middleware.Chain(okHandler(), mark("outer"), mark("inner")), "/", "")
	assert.Equal(t, []string{"outer", "inner"}, order)
}
