// API client for the lidx backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultAPIBaseURL = "http://127.0.0.1:3001"
	defaultAPITimeout = 15 * time.Second

	statusPath      = "/api/downloads/status"
	suggestionsPath = "/api/search/suggestions"
	healthPath      = "/health"
)

// APIService is the client for the lidx backend.
//
// Every GET goes through a [Coordinator] owned by the service, keyed by method, path and canonical query,
// so identical concurrent reads share one request. POSTs are never coalesced.
type APIService struct {
	baseURL     string
	httpClient  *http.Client
	coordinator *Coordinator
	logger      *log.Logger
}

var (
	_ StatusSource     = (*APIService)(nil)
	_ SuggestionSource = (*APIService)(nil)
)

// NewAPIService creates a client for baseURL.
//
// When token is set, every request carries it as a bearer token. A nil client gets a default with a 15s timeout.
func NewAPIService(baseURL, token string, client *http.Client, logger *log.Logger) *APIService {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	if token != "" {
		authed := *client
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   client.Transport,
		}
		client = &authed
	}

	return &APIService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  client,
		coordinator: NewCoordinator(logger),
		logger:      logger,
	}
}

// NewAPIServiceFromConfig creates a client from the [client] config section.
func NewAPIServiceFromConfig(cfg shared.ClientConfig, logger *log.Logger) *APIService {
	return NewAPIService(cfg.BaseURL, cfg.Token, &http.Client{Timeout: cfg.Timeout()}, logger)
}

// Coordinator exposes the service's single-flight coordinator.
func (a *APIService) Coordinator() *Coordinator {
	return a.coordinator
}

// SetLogger replaces the request logger. Call it before the service is shared between goroutines.
func (a *APIService) SetLogger(logger *log.Logger) {
	a.logger = logger
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a coalesced GET request to path and returns the raw response.
//
// Concurrent callers for the same path and query share the returned value.
// Like [APIService.do], a non-2xx status returns both the response and an error.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	v, err := a.coordinator.Run(ctx, RequestKey(http.MethodGet, path), func(ctx context.Context) (any, error) {
		return a.do(ctx, http.MethodGet, path, nil)
	})
	resp, _ := v.(*APIResponse)
	return resp, err
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// DownloadStatus fetches the current download snapshot.
func (a *APIService) DownloadStatus(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := getJSON[*models.Snapshot](ctx, a, statusPath)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: empty status response", shared.ErrAPIRequest)
	}
	return snapshot, nil
}

// RetryDownload issues the retry command for download id.
func (a *APIService) RetryDownload(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: download id must be positive, got %d", shared.ErrInvalidInput, id)
	}

	resp, err := a.Post(ctx, fmt.Sprintf("/api/downloads/%d/retry", id), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %d", shared.ErrDownloadNotFound, id)
		}
		return err
	}
	return nil
}

// Suggestions fetches typeahead suggestions for query.
func (a *APIService) Suggestions(ctx context.Context, query string, limit int) (*models.Suggestions, error) {
	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	suggestions, err := getJSON[*models.Suggestions](ctx, a, suggestionsPath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = &models.Suggestions{}
	}
	return suggestions, nil
}

// Health checks the backend health endpoint.
func (a *APIService) Health(ctx context.Context) (*HealthStatus, error) {
	return getJSON[*HealthStatus](ctx, a, healthPath)
}

// RequestKey builds the coordinator key for a request: the method followed by the path and its query sorted by name.
func RequestKey(method, path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return method + " " + path
	}
	u.RawQuery = u.Query().Encode()
	return method + " " + u.RequestURI()
}

// getJSON decodes a coalesced GET once per result type, sharing the decoded value between callers.
//
// Typed calls are keyed apart from raw [APIService.Get] calls but still join the raw request in flight.
func getJSON[T any](ctx context.Context, a *APIService, path string) (T, error) {
	var zero T
	key := fmt.Sprintf("%s (%T)", RequestKey(http.MethodGet, path), zero)
	return Do(ctx, a.coordinator, key, func(ctx context.Context) (T, error) {
		var out T
		resp, err := a.Get(ctx, path)
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return out, fmt.Errorf("%w: failed to decode %s: %v", shared.ErrAPIRequest, path, err)
		}
		return out, nil
	})
}

// do sends one request. On a non-2xx status it returns both the response and an error.
//
// 401 responses are returned as [shared.ErrUnauthorized] without being logged as errors.
func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	fullURL := a.baseURL + path

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			err = fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, method, path, err)
		} else {
			err = fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, path, err)
		}
		a.logger.Error("request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	a.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apiResp, fmt.Errorf("%w: %s %s", shared.ErrUnauthorized, method, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		err := fmt.Errorf("%w: %s %s: status %d%s", shared.ErrAPIRequest, method, path, resp.StatusCode, errorDetail(apiResp))
		a.logger.Error("request failed", "method", method, "path", path, "status", resp.StatusCode, "error", err)
		return apiResp, err
	}

	return apiResp, nil
}

// errorDetail extracts the {"error": "..."} message written by the backend, if any.
func errorDetail(resp *APIResponse) string {
	if !resp.IsJSON {
		return ""
	}
	if m, ok := resp.JSONData.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok && msg != "" {
			return ": " + msg
		}
	}
	return ""
}
