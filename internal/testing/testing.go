// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/lidx/internal/models"
)

// StatusResponse is one canned reply of [MockStatusSource].
type StatusResponse struct {
	Snapshot *models.Snapshot
	Err      error
}

// MockStatusSource is a test double for services.StatusSource.
//
// DownloadStatus replays Responses in order, repeating the last one. StatusFunc, when set, takes precedence.
type MockStatusSource struct {
	Responses  []StatusResponse
	StatusFunc func(ctx context.Context, call int) (*models.Snapshot, error)
	RetryFunc  func(ctx context.Context, id int) error

	mu          sync.Mutex
	statusCalls int
	retried     []int
}

func NewMockStatusSource(responses ...StatusResponse) *MockStatusSource {
	return &MockStatusSource{Responses: responses}
}

func (m *MockStatusSource) DownloadStatus(ctx context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	call := m.statusCalls
	m.statusCalls++
	m.mu.Unlock()

	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, call)
	}
	if len(m.Responses) == 0 {
		return &models.Snapshot{}, nil
	}
	r := m.Responses[min(call, len(m.Responses)-1)]
	return r.Snapshot, r.Err
}

func (m *MockStatusSource) RetryDownload(ctx context.Context, id int) error {
	m.mu.Lock()
	m.retried = append(m.retried, id)
	m.mu.Unlock()

	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, id)
	}
	return nil
}

// StatusCalls reports how many times DownloadStatus was called.
func (m *MockStatusSource) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// Retried returns the ids passed to RetryDownload, in call order.
func (m *MockStatusSource) Retried() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.retried...)
}

// MockSuggestionSource is a test double for services.SuggestionSource.
type MockSuggestionSource struct {
	SuggestFunc func(ctx context.Context, query string, limit int) (*models.Suggestions, error)

	mu      sync.Mutex
	queries []string
}

func (m *MockSuggestionSource) Suggestions(ctx context.Context, query string, limit int) (*models.Suggestions, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.SuggestFunc != nil {
		return m.SuggestFunc(ctx, query, limit)
	}
	return &models.Suggestions{}, nil
}

// Queries returns every query passed to Suggestions, in call order.
func (m *MockSuggestionSource) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

// Never fails if cond holds at any point during d.
func Never(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("unexpected condition: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
