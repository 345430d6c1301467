package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/services"
	"github.com/desertthunder/lidx/internal/shared"
)

const (
	healthPath      = "/health"
	statusRoute     = "GET /api/downloads/status"
	retryRoute      = "POST /api/downloads/{id}/retry"
	suggestionRoute = "GET /api/search/suggestions"

	maxSuggestionLimit = 25
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto response codes. Upstream auth failures are a gateway problem,
// not the caller's, so they do not surface as 401.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrDownloadNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrUnauthorized):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler reports liveness. It is exempt from bearer auth.
type HealthHandler struct {
	version string
	started time.Time
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now()}
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET " + healthPath}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.HealthStatus{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// DownloadsHandler serves the status snapshot and the retry command.
type DownloadsHandler struct {
	source services.StatusSource
	logger *log.Logger
}

func NewDownloadsHandler(source services.StatusSource, logger *log.Logger) *DownloadsHandler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DownloadsHandler{source: source, logger: logger}
}

func (h *DownloadsHandler) Routes() []string {
	return []string{statusRoute, retryRoute}
}

func (h *DownloadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case statusRoute:
		h.status(w, r)
	case retryRoute:
		h.retry(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *DownloadsHandler) status(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.source.DownloadStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to load status", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	if snapshot == nil {
		snapshot = &models.Snapshot{}
	}
	if snapshot.Items == nil {
		snapshot = &models.Snapshot{Items: []models.DownloadItem{}, Summary: snapshot.Summary}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *DownloadsHandler) retry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "download id must be a positive integer")
		return
	}

	if err := h.source.RetryDownload(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SearchHandler serves typeahead suggestions.
//
// Queries shorter than the minimum length get an empty result without an upstream call.
type SearchHandler struct {
	source    services.SuggestionSource
	minLength int
	limit     int
	logger    *log.Logger
}

func NewSearchHandler(source services.SuggestionSource, cfg shared.SearchConfig, logger *log.Logger) *SearchHandler {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 2
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SearchHandler{source: source, minLength: cfg.MinLength, limit: cfg.Limit, logger: logger}
}

func (h *SearchHandler) Routes() []string {
	return []string{suggestionRoute}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))

	limit := h.limit
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSuggestionLimit)
	}

	empty := &models.Suggestions{Artists: []models.Suggestion{}, Albums: []models.Suggestion{}, Recordings: []models.Suggestion{}}
	if utf8.RuneCountInString(query) < h.minLength {
		writeJSON(w, http.StatusOK, empty)
		return
	}

	suggestions, err := h.source.Suggestions(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("suggestion search failed", "query", query, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := *suggestions
	if out.Artists == nil {
		out.Artists = empty.Artists
	}
	if out.Albums == nil {
		out.Albums = empty.Albums
	}
	if out.Recordings == nil {
		out.Recordings = empty.Recordings
	}
	writeJSON(w, http.StatusOK, &out)
}
