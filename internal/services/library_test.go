package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
)

type fakeQueue struct {
	mu         sync.Mutex
	records    []LidarrQueueRecord
	artists    []LidarrArtist
	queueErr   error
	removeErr  error
	artistsErr error
	queueCalls int
	removed    []int
	searched   []int
}

func (f *fakeQueue) Queue(context.Context) ([]LidarrQueueRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueCalls++
	return f.records, f.queueErr
}

func (f *fakeQueue) RemoveFromQueue(_ context.Context, id int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return f.removeErr
}

func (f *fakeQueue) SearchAlbums(_ context.Context, ids ...int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, ids...)
	return nil
}

func (f *fakeQueue) Artists(context.Context) ([]LidarrArtist, error) {
	return f.artists, f.artistsErr
}

type fakeCatalogue struct {
	results map[models.Kind][]MusicBrainzResult
	errs    map[models.Kind]error
}

func (f *fakeCatalogue) Search(_ context.Context, kind models.Kind, _ string, _ int) ([]MusicBrainzResult, error) {
	return f.results[kind], f.errs[kind]
}

type fakeLedger struct {
	mu       sync.Mutex
	attempts []*models.RetryAttempt
}

func (f *fakeLedger) Create(a *models.RetryAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeLedger) CountByDownload(ids ...int) (map[int]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[int]int{}
	for _, a := range f.attempts {
		counts[a.DownloadID()]++
	}
	return counts, nil
}

func TestLibraryService(t *testing.T) {
	t.Run("DownloadStatus", func(t *testing.T) {
		queue := &fakeQueue{records: []LidarrQueueRecord{
			{ID: 1, Size: 100, SizeLeft: 60, TrackedDownloadState: "downloading"},
			{ID: 2, Size: 100, TrackedDownloadState: "importBlocked", TrackedDownloadStatus: "warning"},
		}}
		ledger := &fakeLedger{}
		ledger.Create(models.NewRetryAttempt(2, 0, nil))
		ledger.Create(models.NewRetryAttempt(2, 0, nil))

		srv := NewLibraryService(queue, &fakeCatalogue{}, ledger, nil)
		snapshot, err := srv.DownloadStatus(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if snapshot.Items[0].Progress != 40 {
			t.Errorf("expected progress 40, got %d", snapshot.Items[0].Progress)
		}
		if snapshot.Items[1].RetryCount != 2 {
			t.Errorf("expected retry count 2, got %d", snapshot.Items[1].RetryCount)
		}
		want := models.Summary{Total: 2, Stuck: 1, OpenIssues: 1}
		if snapshot.Summary != want {
			t.Errorf("expected summary %+v, got %+v", want, snapshot.Summary)
		}
	})

	t.Run("DownloadStatus Upstream Failure", func(t *testing.T) {
		srv := NewLibraryService(&fakeQueue{queueErr: shared.ErrServiceUnavailable}, &fakeCatalogue{}, nil, nil)
		if _, err := srv.DownloadStatus(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("RetryDownload", func(t *testing.T) {
		tt := []struct {
			name         string
			id           int
			removeErr    error
			wantErr      error
			wantSearched bool
			wantAttempts int
		}{
			{"success", 5, nil, nil, true, 1},
			{"remove fails", 5, shared.ErrAPIRequest, shared.ErrAPIRequest, false, 1},
			{"unknown download", 99, nil, shared.ErrDownloadNotFound, false, 0},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				queue := &fakeQueue{
					records:   []LidarrQueueRecord{{ID: 5, AlbumID: 42}},
					removeErr: tc.removeErr,
				}
				ledger := &fakeLedger{}
				srv := NewLibraryService(queue, &fakeCatalogue{}, ledger, nil)

				err := srv.RetryDownload(context.Background(), tc.id)
				if tc.wantErr == nil && err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}

				if searched := len(queue.searched) == 1 && queue.searched[0] == 42; searched != tc.wantSearched {
					t.Errorf("expected album search=%v, got %v", tc.wantSearched, queue.searched)
				}
				if len(ledger.attempts) != tc.wantAttempts {
					t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, len(ledger.attempts))
				}
				if tc.wantAttempts > 0 && ledger.attempts[0].Succeeded() != (tc.wantErr == nil) {
					t.Errorf("expected attempt succeeded=%v", tc.wantErr == nil)
				}
			})
		}
	})

	t.Run("Suggestions", func(t *testing.T) {
		catalogue := &fakeCatalogue{results: map[models.Kind][]MusicBrainzResult{
			models.KindArtist: {
				{Suggestion: models.NewArtist("a1", "Aphex Twin"), ArtistID: "a1"},
				{Suggestion: models.NewArtist("a2", "Aphex Twins Tribute"), ArtistID: "a2"},
			},
			models.KindAlbum:     {{Suggestion: models.NewAlbum("r1", "Drukqs", "Aphex Twin"), ArtistID: "a1"}},
			models.KindRecording: {{Suggestion: models.NewRecording("t1", "Avril 14th", "Aphex Twin"), ArtistID: "a1"}},
		}}
		queue := &fakeQueue{artists: []LidarrArtist{{ID: 1, ForeignArtistID: "a1"}}}
		srv := NewLibraryService(queue, catalogue, nil, nil)

		got, err := srv.Suggestions(context.Background(), "  Aphex ", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		flat := got.Flatten()
		if len(flat) != 4 {
			t.Fatalf("expected 4 suggestions, got %d", len(flat))
		}
		if flat[0].Name != "Aphex Twin" || flat[1].Name != "Aphex Twins Tribute" {
			t.Errorf("expected upstream order preserved, got %v", flat[:2])
		}
		if !flat[0].InLibrary || flat[1].InLibrary || !flat[2].InLibrary || !flat[3].InLibrary {
			t.Errorf("unexpected in-library flags %+v", flat)
		}
	})

	t.Run("Suggestions Partial Failure", func(t *testing.T) {
		catalogue := &fakeCatalogue{
			results: map[models.Kind][]MusicBrainzResult{
				models.KindArtist: {{Suggestion: models.NewArtist("a1", "Autechre"), ArtistID: "a1"}},
			},
			errs: map[models.Kind]error{
				models.KindAlbum:     shared.ErrServiceUnavailable,
				models.KindRecording: shared.ErrServiceUnavailable,
			},
		}
		srv := NewLibraryService(&fakeQueue{artistsErr: shared.ErrUnauthorized}, catalogue, nil, nil)

		got, err := srv.Suggestions(context.Background(), "ae", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Len() != 1 || got.Artists[0].InLibrary {
			t.Errorf("unexpected suggestions %+v", got)
		}
	})

	t.Run("Suggestions Total Failure", func(t *testing.T) {
		catalogue := &fakeCatalogue{errs: map[models.Kind]error{
			models.KindArtist:    shared.ErrServiceUnavailable,
			models.KindAlbum:     shared.ErrServiceUnavailable,
			models.KindRecording: shared.ErrServiceUnavailable,
		}}
		srv := NewLibraryService(&fakeQueue{}, catalogue, nil, nil)

		if _, err := srv.Suggestions(context.Background(), "ae", 5); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Suggestions Empty Query", func(t *testing.T) {
		srv := NewLibraryService(&fakeQueue{}, &fakeCatalogue{}, nil, nil)
		got, err := srv.Suggestions(context.Background(), "   ", 5)
		if err != nil || got.Len() != 0 {
			t.Errorf("expected empty suggestions, got %+v, %v", got, err)
		}
	})
}
