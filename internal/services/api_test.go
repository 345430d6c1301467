package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
	tu "github.com/desertthunder/lidx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", "", customClient, nil)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", "", nil, nil)

			if srv.baseURL != defaultAPIBaseURL {
				t.Errorf("expected default baseURL %q, got %s", defaultAPIBaseURL, srv.baseURL)
			}
			if srv.httpClient.Timeout != defaultAPITimeout {
				t.Errorf("expected default timeout, got %v", srv.httpClient.Timeout)
			}
		})

		t.Run("With Token Leaves Caller Client Untouched", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", "secret", customClient, nil)

			if srv.httpClient == customClient {
				t.Error("expected a copy of the client")
			}
			if customClient.Transport != nil {
				t.Error("expected caller's transport to be unchanged")
			}
		})

		t.Run("From Config", func(t *testing.T) {
			srv := NewAPIServiceFromConfig(shared.ClientConfig{BaseURL: "http://lidx.local", TimeoutSeconds: 3}, nil)
			if srv.httpClient.Timeout != 3*time.Second {
				t.Errorf("expected 3s timeout, got %v", srv.httpClient.Timeout)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/test" {
					t.Errorf("expected path '/test', got %s", r.URL.Path)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, "", nil, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected JSON response with JSONData populated")
			}
		})

		t.Run("Successful Request With Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, "", nil, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("expected body 'plain text response', got %s", string(resp.Body))
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", "", nil, nil)
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService("http://example.com", "", client, nil)
			_, err := srv.Get(context.Background(), "/test")

			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService("http://example.com", "", client, nil)
			_, err := srv.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv := NewAPIService(server.URL, "", nil, nil)
			if _, err := srv.Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})

		t.Run("Non-2xx Returns Response And Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				json.NewEncoder(w).Encode(map[string]string{"error": "lidarr unreachable"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, "", nil, nil)
			resp, err := srv.Get(context.Background(), "/test")

			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "lidarr unreachable") {
				t.Errorf("expected error detail in message, got %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusBadGateway {
				t.Errorf("expected response with status 502, got %+v", resp)
			}
		})
	})

	t.Run("Bearer Token", func(t *testing.T) {
		var got string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, "secret-token", nil, nil)
		if _, err := srv.Health(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "Bearer secret-token" {
			t.Errorf("expected bearer header, got %q", got)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		tt := []struct {
			name       string
			status     int
			wantErr    error
			wantLogged bool
		}{
			{"401 is not logged as an error", http.StatusUnauthorized, shared.ErrUnauthorized, false},
			{"500 is logged", http.StatusInternalServerError, shared.ErrAPIRequest, true},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
				}))
				defer server.Close()

				var buf bytes.Buffer
				srv := NewAPIService(server.URL, "", nil, log.New(&buf))
				_, err := srv.DownloadStatus(context.Background())

				if !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
				if logged := strings.Contains(buf.String(), "ERRO"); logged != tc.wantLogged {
					t.Errorf("expected logged=%v, log output: %q", tc.wantLogged, buf.String())
				}
			})
		}
	})

	t.Run("Concurrent Identical GETs Share One Request", func(t *testing.T) {
		var hits atomic.Int32
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			<-release
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, "", nil, nil)

		results := make([]*HealthStatus, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = srv.Health(context.Background())
			}()
		}

		tu.Eventually(t, time.Second, func() bool { return hits.Load() == 1 }, "request reached server")
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if hits.Load() != 1 {
			t.Errorf("expected 1 request, got %d", hits.Load())
		}
		if results[0] == nil || results[0] != results[1] {
			t.Fatalf("expected both callers to receive the same value, got %p and %p", results[0], results[1])
		}
		if results[0].Status != "ok" {
			t.Errorf("expected status ok, got %q", results[0].Status)
		}

		if _, err := srv.Health(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected a fresh request after settlement, got %d", hits.Load())
		}
	})

	t.Run("Raw And Typed GETs Share One Request", func(t *testing.T) {
		var hits atomic.Int32
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			<-release
			w.Write([]byte(`{"items":[{"id":7,"progress":55,"status":"active"}],"summary":{"total":1}}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, "", nil, nil)

		var (
			wg       sync.WaitGroup
			raw      *APIResponse
			rawErr   error
			snapshot *models.Snapshot
			typedErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			raw, rawErr = srv.Get(context.Background(), statusPath)
		}()
		tu.Eventually(t, time.Second, func() bool { return hits.Load() == 1 }, "raw request reached server")

		go func() {
			defer wg.Done()
			snapshot, typedErr = srv.DownloadStatus(context.Background())
		}()
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if rawErr != nil || typedErr != nil {
			t.Fatalf("expected no errors, got raw=%v typed=%v", rawErr, typedErr)
		}
		if hits.Load() != 1 {
			t.Errorf("expected 1 request, got %d", hits.Load())
		}
		if raw == nil || raw.StatusCode != http.StatusOK {
			t.Errorf("expected raw 200 response, got %+v", raw)
		}
		if snapshot == nil || len(snapshot.Items) != 1 || snapshot.Items[0].ID != 7 {
			t.Errorf("expected decoded snapshot, got %+v", snapshot)
		}
	})

	t.Run("DownloadStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != statusPath {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"items":[{"id":1,"progress":40,"status":"active","retryCount":0,"stuck":false}],"summary":{"total":1,"stuck":0,"openIssues":0}}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, "", nil, nil)
		snapshot, err := srv.DownloadStatus(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(snapshot.Items) != 1 || snapshot.Items[0].Progress != 40 {
			t.Errorf("unexpected items %+v", snapshot.Items)
		}
		if snapshot.Summary.Total != 1 {
			t.Errorf("expected total 1, got %d", snapshot.Summary.Total)
		}
	})

	t.Run("RetryDownload", func(t *testing.T) {
		tt := []struct {
			name    string
			id      int
			status  int
			wantErr error
		}{
			{"accepted", 7, http.StatusOK, nil},
			{"not found", 7, http.StatusNotFound, shared.ErrDownloadNotFound},
			{"upstream failure", 7, http.StatusBadGateway, shared.ErrAPIRequest},
			{"invalid id", 0, http.StatusOK, shared.ErrInvalidInput},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.Method != http.MethodPost || r.URL.Path != "/api/downloads/7/retry" {
						t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
					}
					w.WriteHeader(tc.status)
					w.Write([]byte(`{"ok":true}`))
				}))
				defer server.Close()

				srv := NewAPIService(server.URL, "", nil, nil)
				err := srv.RetryDownload(context.Background(), tc.id)
				if tc.wantErr == nil && err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
			})
		}
	})

	t.Run("Suggestions", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("query"); got != "radio" {
				t.Errorf("expected trimmed query 'radio', got %q", got)
			}
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("expected limit 5, got %q", got)
			}
			w.Write([]byte(`{
				"artists":[{"id":"a1","name":"Radiohead","inLibrary":true}],
				"albums":[{"id":"r1","name":"OK Computer","artist":"Radiohead"}],
				"recordings":[{"name":"Airbag","artist":"Radiohead"}]
			}`))
		}))
		defer server.Close()

		srv := NewAPIService(server.URL, "", nil, nil)
		got, err := srv.Suggestions(context.Background(), "  radio ", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		flat := got.Flatten()
		if len(flat) != 3 {
			t.Fatalf("expected 3 suggestions, got %d", len(flat))
		}
		wantKinds := []models.Kind{models.KindArtist, models.KindAlbum, models.KindRecording}
		for i, s := range flat {
			if s.Kind != wantKinds[i] {
				t.Errorf("suggestion %d: expected kind %s, got %s", i, wantKinds[i], s.Kind)
			}
		}
		if !flat[0].InLibrary {
			t.Error("expected artist to be in library")
		}
	})

	t.Run("RequestKey", func(t *testing.T) {
		tt := []struct {
			method, path, want string
		}{
			{"GET", "/api/downloads/status", "GET /api/downloads/status"},
			{"GET", "/api/search/suggestions?query=a+b&limit=5", "GET /api/search/suggestions?limit=5&query=a+b"},
			{"GET", "/api/search/suggestions?limit=5&query=a+b", "GET /api/search/suggestions?limit=5&query=a+b"},
			{"POST", "/api/downloads/1/retry", "POST /api/downloads/1/retry"},
		}

		for _, tc := range tt {
			if got := RequestKey(tc.method, tc.path); got != tc.want {
				t.Errorf("RequestKey(%q, %q) = %q, want %q", tc.method, tc.path, got, tc.want)
			}
		}
	})
}
