package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	queueKey   = "lidarr:queue"
	artistsKey = "lidarr:artists"
)

// Queue is the part of [LidarrService] the backend depends on.
type Queue interface {
	Queue(ctx context.Context) ([]LidarrQueueRecord, error)
	RemoveFromQueue(ctx context.Context, id int, blocklist bool) error
	SearchAlbums(ctx context.Context, albumIDs ...int) error
	Artists(ctx context.Context) ([]LidarrArtist, error)
}

// Catalogue is the part of [MusicBrainzService] the backend depends on.
type Catalogue interface {
	Search(ctx context.Context, kind models.Kind, query string, limit int) ([]MusicBrainzResult, error)
}

// LibraryService is the backend implementation of [StatusSource] and [SuggestionSource].
//
// Status comes from the Lidarr queue with retry counts from the ledger; suggestions come from MusicBrainz,
// marked when the artist is already in the Lidarr library. Upstream reads are coalesced with a [Coordinator].
type LibraryService struct {
	queue       Queue
	catalogue   Catalogue
	ledger      RetryLedger
	coordinator *Coordinator
	logger      *log.Logger
}

var (
	_ StatusSource     = (*LibraryService)(nil)
	_ SuggestionSource = (*LibraryService)(nil)
)

// NewLibraryService creates the backend service. ledger may be nil, in which case retries are not recorded.
func NewLibraryService(queue Queue, catalogue Catalogue, ledger RetryLedger, logger *log.Logger) *LibraryService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LibraryService{
		queue:       queue,
		catalogue:   catalogue,
		ledger:      ledger,
		coordinator: NewCoordinator(logger),
		logger:      logger,
	}
}

func (s *LibraryService) records(ctx context.Context) ([]LidarrQueueRecord, error) {
	return Do(ctx, s.coordinator, queueKey, s.queue.Queue)
}

// DownloadStatus maps the Lidarr queue into a snapshot.
func (s *LibraryService) DownloadStatus(ctx context.Context) (*models.Snapshot, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.DownloadItem, len(records))
	ids := make([]int, len(records))
	for i, rec := range records {
		items[i] = QueueItem(rec)
		ids[i] = rec.ID
	}

	if s.ledger != nil && len(ids) > 0 {
		counts, err := s.ledger.CountByDownload(ids...)
		if err != nil {
			s.logger.Warn("failed to load retry counts", "error", err)
		}
		for i := range items {
			items[i].RetryCount = counts[items[i].ID]
		}
	}

	return &models.Snapshot{
		Items:     items,
		Summary:   models.Summarize(items),
		FetchedAt: time.Now(),
	}, nil
}

// RetryDownload removes the download from the client with a blocklist entry and triggers a new album search.
//
// The attempt is recorded whatever the outcome. The cached queue read is dropped so the next status is fresh.
func (s *LibraryService) RetryDownload(ctx context.Context, id int) error {
	records, err := s.records(ctx)
	if err != nil {
		return err
	}

	var rec *LidarrQueueRecord
	for i := range records {
		if records[i].ID == id {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return fmt.Errorf("%w: %d", shared.ErrDownloadNotFound, id)
	}

	err = s.queue.RemoveFromQueue(ctx, id, true)
	if err == nil && rec.AlbumID > 0 {
		err = s.queue.SearchAlbums(ctx, rec.AlbumID)
	}
	s.coordinator.Forget(queueKey)

	if s.ledger != nil {
		if lerr := s.ledger.Create(models.NewRetryAttempt(id, rec.AlbumID, err)); lerr != nil {
			s.logger.Warn("failed to record retry attempt", "download", id, "error", lerr)
		}
	}

	if err != nil {
		s.logger.Error("retry failed", "download", id, "error", err)
		return err
	}
	s.logger.Info("retry issued", "download", id, "album", rec.AlbumID)
	return nil
}

// Suggestions searches artists, release groups and recordings in parallel.
//
// A failing kind is logged and left empty; the call fails only if every kind fails.
func (s *LibraryService) Suggestions(ctx context.Context, query string, limit int) (*models.Suggestions, error) {
	normalized := shared.NormalizeQuery(query)
	if normalized == "" {
		return &models.Suggestions{}, nil
	}

	results := make([][]MusicBrainzResult, len(models.Kinds))
	errs := make([]error, len(models.Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range models.Kinds {
		g.Go(func() error {
			key := "musicbrainz:" + kind.String() + ":" + normalized + ":" + strconv.Itoa(limit)
			res, err := Do(gctx, s.coordinator, key, func(ctx context.Context) ([]MusicBrainzResult, error) {
				return s.catalogue.Search(ctx, kind, normalized, limit)
			})
			if err != nil {
				s.logger.Warn("search failed", "kind", kind, "query", normalized, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(errs) {
		return nil, errors.Join(errs...)
	}

	library := s.libraryArtists(ctx)
	out := &models.Suggestions{}
	for i, kind := range models.Kinds {
		for _, r := range results[i] {
			sg := r.Suggestion
			sg.InLibrary = r.ArtistID != "" && library[r.ArtistID]
			switch kind {
			case models.KindArtist:
				out.Artists = append(out.Artists, sg)
			case models.KindAlbum:
				out.Albums = append(out.Albums, sg)
			case models.KindRecording:
				out.Recordings = append(out.Recordings, sg)
			}
		}
	}
	return out, nil
}

// libraryArtists returns the set of MusicBrainz artist ids in Lidarr. Failures yield an empty set.
func (s *LibraryService) libraryArtists(ctx context.Context) map[string]bool {
	artists, err := Do(ctx, s.coordinator, artistsKey, s.queue.Artists)
	if err != nil {
		s.logger.Warn("failed to load library artists", "error", err)
		return nil
	}

	set := make(map[string]bool, len(artists))
	for _, a := range artists {
		if a.ForeignArtistID != "" {
			set[a.ForeignArtistID] = true
		}
	}
	return set
}
