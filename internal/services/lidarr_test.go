package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
)

func newTestLidarr(t *testing.T, handler http.HandlerFunc) *LidarrService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewLidarrService(shared.LidarrConfig{URL: server.URL, APIKey: "key", PageSize: 50}, nil, nil)
	if err != nil {
		t.Fatalf("failed to create lidarr service: %v", err)
	}
	return srv
}

func TestLidarrService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		if _, err := NewLidarrService(shared.LidarrConfig{}, nil, nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		srv, err := NewLidarrService(shared.LidarrConfig{APIKey: "key"}, nil, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.baseURL != defaultLidarrURL || srv.pageSize != defaultLidarrPageSize {
			t.Errorf("expected defaults, got %s / %d", srv.baseURL, srv.pageSize)
		}
	})

	t.Run("Queue", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != "key" {
				t.Errorf("expected api key header, got %q", r.Header.Get("X-Api-Key"))
			}
			if r.URL.Path != "/api/v1/queue" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("pageSize") != "50" || q.Get("includeArtist") != "true" || q.Get("includeAlbum") != "true" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"page":1,"pageSize":50,"totalRecords":1,"records":[
				{"id":3,"albumId":9,"title":"release","size":1000,"sizeleft":250,
				 "artist":{"artistName":"Boards of Canada"},"album":{"title":"Geogaddi"},
				 "status":"downloading","trackedDownloadStatus":"ok","trackedDownloadState":"downloading"}
			]}`))
		})

		records, err := srv.Queue(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(records) != 1 || records[0].AlbumID != 9 {
			t.Fatalf("unexpected records %+v", records)
		}

		item := QueueItem(records[0])
		if item.Progress != 75 {
			t.Errorf("expected progress 75, got %d", item.Progress)
		}
		if item.Label() != "Boards of Canada - Geogaddi" {
			t.Errorf("unexpected label %q", item.Label())
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		if _, err := srv.Queue(context.Background()); !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Error Message", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"bad page size"}`))
		})
		_, err := srv.Queue(context.Background())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("RemoveFromQueue", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/queue/3" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.URL.Query().Get("blocklist") != "true" || r.URL.Query().Get("removeFromClient") != "true" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
		})
		if err := srv.RemoveFromQueue(context.Background(), 3, true); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("RemoveFromQueue Not Found", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		if err := srv.RemoveFromQueue(context.Background(), 3, true); !errors.Is(err, shared.ErrDownloadNotFound) {
			t.Errorf("expected ErrDownloadNotFound, got %v", err)
		}
	})

	t.Run("SearchAlbums", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var cmd LidarrCommand
			if err := json.Unmarshal(body, &cmd); err != nil {
				t.Fatalf("failed to decode command: %v", err)
			}
			if cmd.Name != "AlbumSearch" || len(cmd.AlbumIDs) != 1 || cmd.AlbumIDs[0] != 9 {
				t.Errorf("unexpected command %+v", cmd)
			}
			w.WriteHeader(http.StatusCreated)
		})
		if err := srv.SearchAlbums(context.Background(), 9); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if err := srv.SearchAlbums(context.Background()); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Artists", func(t *testing.T) {
		srv := newTestLidarr(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":1,"artistName":"Autechre","foreignArtistId":"mbid-1"}]`))
		})
		artists, err := srv.Artists(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(artists) != 1 || artists[0].ForeignArtistID != "mbid-1" {
			t.Errorf("unexpected artists %+v", artists)
		}
	})
}

func TestQueueItem(t *testing.T) {
	tt := []struct {
		name      string
		rec       LidarrQueueRecord
		wantState models.DownloadStatus
		wantStuck bool
	}{
		{"downloading", LidarrQueueRecord{Status: "downloading", TrackedDownloadState: "downloading"}, models.StatusActive, false},
		{"import pending", LidarrQueueRecord{Status: "completed", TrackedDownloadState: "importPending"}, models.StatusStuck, true},
		{"import blocked", LidarrQueueRecord{Status: "completed", TrackedDownloadState: "importBlocked"}, models.StatusStuck, true},
		{"importing", LidarrQueueRecord{Status: "completed", TrackedDownloadState: "importing"}, models.StatusImporting, false},
		{"imported", LidarrQueueRecord{Status: "completed", TrackedDownloadState: "imported"}, models.StatusCompleted, false},
		{"failed pending", LidarrQueueRecord{Status: "failed", TrackedDownloadState: "failedPending"}, models.StatusFailed, true},
		{"tracked error", LidarrQueueRecord{Status: "downloading", TrackedDownloadStatus: "error"}, models.StatusFailed, true},
		{"tracked warning", LidarrQueueRecord{Status: "downloading", TrackedDownloadStatus: "warning"}, models.StatusStuck, true},
		{"completed", LidarrQueueRecord{Status: "completed"}, models.StatusCompleted, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			item := QueueItem(tc.rec)
			if item.Status != tc.wantState {
				t.Errorf("expected status %s, got %s", tc.wantState, item.Status)
			}
			if item.Stuck != tc.wantStuck {
				t.Errorf("expected stuck=%v, got %v", tc.wantStuck, item.Stuck)
			}
		})
	}

	t.Run("Progress", func(t *testing.T) {
		tt := []struct {
			size, left float64
			want       int
		}{
			{0, 0, 0},
			{100, 100, 0},
			{100, 0, 100},
			{3, 1, 67},
		}
		for _, tc := range tt {
			if got := queueProgress(tc.size, tc.left); got != tc.want {
				t.Errorf("queueProgress(%v, %v) = %d, want %d", tc.size, tc.left, got, tc.want)
			}
		}
	})

	t.Run("Status Messages", func(t *testing.T) {
		item := QueueItem(LidarrQueueRecord{StatusMessages: []LidarrStatusMessage{
			{Title: "album.flac", Messages: []string{"No files found"}},
			{Title: "Has no message"},
		}})
		if len(item.StatusMessages) != 2 || item.StatusMessages[0] != "No files found" || item.StatusMessages[1] != "Has no message" {
			t.Errorf("unexpected messages %v", item.StatusMessages)
		}
	})
}
