// Lidarr API client
//
// Response types based on https://lidarr.audio/docs/api/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
)

const (
	defaultLidarrURL      = "http://127.0.0.1:8686"
	defaultLidarrPageSize = 100
)

// LidarrQueuePage is one page of GET /api/v1/queue.
type LidarrQueuePage struct {
	Page         int                 `json:"page"`
	PageSize     int                 `json:"pageSize"`
	TotalRecords int                 `json:"totalRecords"`
	Records      []LidarrQueueRecord `json:"records"`
}

// LidarrQueueRecord represents a queued download.
type LidarrQueueRecord struct {
	ID                    int                   `json:"id"`
	ArtistID              int                   `json:"artistId"`
	AlbumID               int                   `json:"albumId"`
	Artist                *LidarrArtist         `json:"artist,omitempty"`
	Album                 *LidarrAlbum          `json:"album,omitempty"`
	Title                 string                `json:"title"`
	Size                  float64               `json:"size"`
	SizeLeft              float64               `json:"sizeleft"`
	TimeLeft              string                `json:"timeleft"`
	Status                string                `json:"status"`
	TrackedDownloadStatus string                `json:"trackedDownloadStatus"`
	TrackedDownloadState  string                `json:"trackedDownloadState"`
	StatusMessages        []LidarrStatusMessage `json:"statusMessages"`
	ErrorMessage          string                `json:"errorMessage"`
	DownloadClient        string                `json:"downloadClient"`
	Protocol              string                `json:"protocol"`
}

// LidarrStatusMessage groups the messages attached to a queue record.
type LidarrStatusMessage struct {
	Title    string   `json:"title"`
	Messages []string `json:"messages"`
}

// LidarrArtist represents an artist in the Lidarr library.
type LidarrArtist struct {
	ID              int    `json:"id"`
	ArtistName      string `json:"artistName"`
	ForeignArtistID string `json:"foreignArtistId"`
}

// LidarrAlbum represents an album in the Lidarr library.
type LidarrAlbum struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	ForeignAlbumID string `json:"foreignAlbumId"`
}

// LidarrCommand is the body of POST /api/v1/command.
type LidarrCommand struct {
	Name     string `json:"name"`
	AlbumIDs []int  `json:"albumIds,omitempty"`
}

// LidarrService talks to a Lidarr instance with an API key.
type LidarrService struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	logger     *log.Logger
}

// NewLidarrService creates a Lidarr client. An API key is required.
func NewLidarrService(cfg shared.LidarrConfig, client *http.Client, logger *log.Logger) (*LidarrService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: lidarr.api_key", shared.ErrMissingCredentials)
	}
	if cfg.URL == "" {
		cfg.URL = defaultLidarrURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultLidarrPageSize
	}
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &LidarrService{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   cfg.PageSize,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Name returns the service name.
func (l *LidarrService) Name() string {
	return "Lidarr"
}

func (l *LidarrService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := l.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Api-Key", l.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: lidarr: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: lidarr rejected api key", shared.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: lidarr %s", shared.ErrDownloadNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("%w: lidarr (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("%w: lidarr: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Queue retrieves the first page of the download queue with artist and album details.
//
// Calls GET /api/v1/queue.
func (l *LidarrService) Queue(ctx context.Context) ([]LidarrQueueRecord, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("pageSize", strconv.Itoa(l.pageSize))
	params.Set("includeArtist", "true")
	params.Set("includeAlbum", "true")

	var page LidarrQueuePage
	if err := l.doRequest(ctx, http.MethodGet, "/api/v1/queue?"+params.Encode(), nil, &page); err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}

	if page.TotalRecords > len(page.Records) {
		l.logger.Warn("queue truncated", "returned", len(page.Records), "total", page.TotalRecords)
	}

	return page.Records, nil
}

// RemoveFromQueue removes a queue item from the download client, optionally blocklisting the release.
//
// Calls DELETE /api/v1/queue/{id}.
func (l *LidarrService) RemoveFromQueue(ctx context.Context, id int, blocklist bool) error {
	params := url.Values{}
	params.Set("removeFromClient", "true")
	params.Set("blocklist", strconv.FormatBool(blocklist))

	endpoint := fmt.Sprintf("/api/v1/queue/%d?%s", id, params.Encode())
	if err := l.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to remove queue item %d: %w", id, err)
	}
	return nil
}

// SearchAlbums asks Lidarr to search for new releases of the given albums.
//
// Calls POST /api/v1/command with an AlbumSearch command.
func (l *LidarrService) SearchAlbums(ctx context.Context, albumIDs ...int) error {
	if len(albumIDs) == 0 {
		return fmt.Errorf("%w: album ids", shared.ErrMissingArgument)
	}

	cmd := LidarrCommand{Name: "AlbumSearch", AlbumIDs: albumIDs}
	if err := l.doRequest(ctx, http.MethodPost, "/api/v1/command", cmd, nil); err != nil {
		return fmt.Errorf("failed to start album search: %w", err)
	}
	return nil
}

// Artists retrieves every artist in the library.
//
// Calls GET /api/v1/artist.
func (l *LidarrService) Artists(ctx context.Context) ([]LidarrArtist, error) {
	var artists []LidarrArtist
	if err := l.doRequest(ctx, http.MethodGet, "/api/v1/artist", nil, &artists); err != nil {
		return nil, fmt.Errorf("failed to get artists: %w", err)
	}
	return artists, nil
}

// QueueItem maps a queue record onto a [models.DownloadItem]. RetryCount is left at zero.
func QueueItem(rec LidarrQueueRecord) models.DownloadItem {
	item := models.DownloadItem{
		ID:                    rec.ID,
		Title:                 rec.Title,
		AlbumID:               rec.AlbumID,
		Progress:              queueProgress(rec.Size, rec.SizeLeft),
		TrackedDownloadStatus: rec.TrackedDownloadStatus,
		TrackedDownloadState:  rec.TrackedDownloadState,
		Size:                  int64(rec.Size),
		SizeLeft:              int64(rec.SizeLeft),
		TimeLeft:              rec.TimeLeft,
		DownloadClient:        rec.DownloadClient,
		ErrorMessage:          rec.ErrorMessage,
	}

	if rec.Artist != nil {
		item.Artist = rec.Artist.ArtistName
	}
	if rec.Album != nil {
		item.Album = rec.Album.Title
	}

	for _, sm := range rec.StatusMessages {
		if len(sm.Messages) == 0 && sm.Title != "" {
			item.StatusMessages = append(item.StatusMessages, sm.Title)
		}
		item.StatusMessages = append(item.StatusMessages, sm.Messages...)
	}

	item.Status = queueStatus(rec)
	item.Stuck = item.Status == models.StatusStuck || item.Status == models.StatusFailed
	return item
}

// queueStatus normalizes Lidarr's status, tracked status and tracked state into one [models.DownloadStatus].
func queueStatus(rec LidarrQueueRecord) models.DownloadStatus {
	status := strings.ToLower(rec.Status)
	tracked := strings.ToLower(rec.TrackedDownloadStatus)

	switch rec.TrackedDownloadState {
	case "failed", "failedPending":
		return models.StatusFailed
	case "importPending", "importBlocked":
		return models.StatusStuck
	case "importing":
		return models.StatusImporting
	case "imported":
		return models.StatusCompleted
	}

	switch {
	case status == "failed" || tracked == "error":
		return models.StatusFailed
	case status == "warning" || tracked == "warning":
		return models.StatusStuck
	case status == "completed":
		return models.StatusCompleted
	default:
		return models.StatusActive
	}
}

func queueProgress(size, left float64) int {
	if size <= 0 {
		return 0
	}
	return int(math.Round((size - left) / size * 100))
}
