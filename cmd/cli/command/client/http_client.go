package client

// http_client.go = typed access to the cinehub HTTP API for the CLI.

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"cinehub/internal/microservices/http-api/dto"
	"cinehub/internal/microservices/http-api/service"
	"cinehub/internal/titlesync"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int
	Message   string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("%s (status %d, retry later)", e.Message, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

// TitleQuery mirrors the GET /api/titles query string.
type TitleQuery struct {
	Type   string
	Sort   string
	Search string
	Limit  int
}

func (q TitleQuery) values() url.Values {
	v := url.Values{}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type UserRatingsResponse struct {
	Items []dto.UserRatingResponse `json:"items"`
	Total int                      `json:"total"`
}

type ListsResponse struct {
	Items []dto.ListResponse `json:"items"`
	Total int                `json:"total"`
}

type ListItemsResponse struct {
	Items []dto.ListItemResponse `json:"items"`
	Total int                    `json:"total"`
}

func (c *HTTPClient) Titles(q TitleQuery) (*dto.TitleListResponse, error) {
	path := "/api/titles"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	var out dto.TitleListResponse
	return &out, c.do(http.MethodGet, path, nil, &out)
}

func (c *HTTPClient) Title(id string) (*dto.TitleResponse, error) {
	var out dto.TitleResponse
	return &out, c.do(http.MethodGet, "/api/titles/"+url.PathEscape(id), nil, &out)
}

func (c *HTTPClient) SyncStatus() (*titlesync.Status, error) {
	var out titlesync.Status
	return &out, c.do(http.MethodGet, "/api/sync/status", nil, &out)
}

func (c *HTTPClient) Resync() (*titlesync.Status, error) {
	var out titlesync.Status
	return &out, c.do(http.MethodPost, "/api/sync/resync", nil, &out)
}

// Rate submits a score. A 202 answer still returns the saved rating; its
// Warning field says the aggregate is stale.
func (c *HTTPClient) Rate(titleID string, score int) (*dto.RatingResponse, error) {
	var out dto.RatingResponse
	err := c.do(http.MethodPost, "/api/titles/"+url.PathEscape(titleID)+"/rating", dto.SubmitRatingRequest{Rating: score}, &out)
	return &out, err
}

func (c *HTTPClient) MyRating(titleID string) (*dto.UserRatingResponse, error) {
	var out dto.UserRatingResponse
	return &out, c.do(http.MethodGet, "/api/titles/"+url.PathEscape(titleID)+"/rating", nil, &out)
}

func (c *HTTPClient) MyRatings() (*UserRatingsResponse, error) {
	var out UserRatingsResponse
	return &out, c.do(http.MethodGet, "/api/me/ratings", nil, &out)
}

func (c *HTTPClient) Watchlist() (*dto.WatchlistResponse, error) {
	var out dto.WatchlistResponse
	return &out, c.do(http.MethodGet, "/api/watchlist", nil, &out)
}

func (c *HTTPClient) AddToWatchlist(titleID string) (service.AddOutcome, error) {
	var out dto.OutcomeResponse
	err := c.do(http.MethodPost, "/api/watchlist", dto.AddToWatchlistRequest{TitleID: titleID}, &out)
	return service.AddOutcome(out.Outcome), err
}

func (c *HTTPClient) RemoveFromWatchlist(titleID string) error {
	return c.do(http.MethodDelete, "/api/watchlist/"+url.PathEscape(titleID), nil, nil)
}

func (c *HTTPClient) Lists() (*ListsResponse, error) {
	var out ListsResponse
	return &out, c.do(http.MethodGet, "/api/lists", nil, &out)
}

func (c *HTTPClient) CreateList(req dto.CreateListRequest) (*dto.ListResponse, error) {
	var out dto.ListResponse
	return &out, c.do(http.MethodPost, "/api/lists", req, &out)
}

func (c *HTTPClient) DeleteList(listID string, confirm bool) error {
	path := "/api/lists/" + url.PathEscape(listID)
	if confirm {
		path += "?confirm=true"
	}
	return c.do(http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) ListItems(listID string) (*ListItemsResponse, error) {
	var out ListItemsResponse
	return &out, c.do(http.MethodGet, "/api/lists/"+url.PathEscape(listID)+"/items", nil, &out)
}

func (c *HTTPClient) AddListItem(listID, titleID string) (service.AddOutcome, error) {
	var out dto.OutcomeResponse
	err := c.do(http.MethodPost, "/api/lists/"+url.PathEscape(listID)+"/items", dto.AddListItemRequest{TitleID: titleID}, &out)
	return service.AddOutcome(out.Outcome), err
}

func (c *HTTPClient) RemoveListItem(listID, titleID string) error {
	return c.do(http.MethodDelete, "/api/lists/"+url.PathEscape(listID)+"/items/"+url.PathEscape(titleID), nil, nil)
}

func (c *HTTPClient) Stats() (*service.Stats, error) {
	var out service.Stats
	return &out, c.do(http.MethodGet, "/api/admin/stats", nil, &out)
}

// do sends body as JSON and decodes a 2xx answer into out when out is
// non-nil.
func (c *HTTPClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // Ensure the response body is closed

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, Retryable: e.Retryable}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
