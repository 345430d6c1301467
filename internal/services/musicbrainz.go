// MusicBrainz search client
//
// Response types based on https://musicbrainz.org/doc/MusicBrainz_API/Search
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultMusicBrainzURL = "https://musicbrainz.org/ws/2"
	userAgentName         = "lidx"
	userAgentVersion      = "0.1.0"
)

// MusicBrainzArtistCredit is one credited artist with the phrase joining it to the next credit.
type MusicBrainzArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// MusicBrainzArtist represents an artist search hit.
type MusicBrainzArtist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Disambiguation string `json:"disambiguation"`
}

// MusicBrainzReleaseGroup represents a release group (album) search hit.
type MusicBrainzReleaseGroup struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Score        int                       `json:"score"`
	PrimaryType  string                    `json:"primary-type"`
	ArtistCredit []MusicBrainzArtistCredit `json:"artist-credit"`
}

// MusicBrainzRecording represents a recording search hit.
type MusicBrainzRecording struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Score        int                       `json:"score"`
	ArtistCredit []MusicBrainzArtistCredit `json:"artist-credit"`
}

// MusicBrainzResult pairs a suggestion with the MBID of its (first credited) artist.
type MusicBrainzResult struct {
	Suggestion models.Suggestion
	ArtistID   string
}

// MusicBrainzService searches the MusicBrainz web service under a shared rate limit.
type MusicBrainzService struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewMusicBrainzService creates a search client. Requests are throttled to cfg.RatePerSecond with cfg.Burst.
func NewMusicBrainzService(cfg shared.MusicBrainzConfig, client *http.Client, logger *log.Logger) *MusicBrainzService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMusicBrainzURL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ua := userAgentName + "/" + userAgentVersion
	if cfg.Contact != "" {
		ua += " ( " + cfg.Contact + " )"
	}

	return &MusicBrainzService{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  ua,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:     logger,
	}
}

// Name returns the service name.
func (m *MusicBrainzService) Name() string {
	return "MusicBrainz"
}

func (m *MusicBrainzService) search(ctx context.Context, entity, query string, limit int, result any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fmt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/"+entity+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: musicbrainz: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: musicbrainz throttled (status %d)", shared.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: musicbrainz (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: musicbrainz: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search runs the search for one suggestion kind.
func (m *MusicBrainzService) Search(ctx context.Context, kind models.Kind, query string, limit int) ([]MusicBrainzResult, error) {
	switch kind {
	case models.KindArtist:
		return m.SearchArtists(ctx, query, limit)
	case models.KindAlbum:
		return m.SearchReleaseGroups(ctx, query, limit)
	case models.KindRecording:
		return m.SearchRecordings(ctx, query, limit)
	default:
		return nil, fmt.Errorf("%w: suggestion kind %d", shared.ErrInvalidArgument, kind)
	}
}

// SearchArtists calls GET /ws/2/artist.
func (m *MusicBrainzService) SearchArtists(ctx context.Context, query string, limit int) ([]MusicBrainzResult, error) {
	var resp struct {
		Artists []MusicBrainzArtist `json:"artists"`
	}
	if err := m.search(ctx, "artist", query, limit, &resp); err != nil {
		return nil, fmt.Errorf("failed to search artists: %w", err)
	}

	results := make([]MusicBrainzResult, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		results = append(results, MusicBrainzResult{Suggestion: models.NewArtist(a.ID, a.Name), ArtistID: a.ID})
	}
	return keepValid(m.logger, results), nil
}

// SearchReleaseGroups calls GET /ws/2/release-group.
func (m *MusicBrainzService) SearchReleaseGroups(ctx context.Context, query string, limit int) ([]MusicBrainzResult, error) {
	var resp struct {
		ReleaseGroups []MusicBrainzReleaseGroup `json:"release-groups"`
	}
	if err := m.search(ctx, "release-group", query, limit, &resp); err != nil {
		return nil, fmt.Errorf("failed to search release groups: %w", err)
	}

	results := make([]MusicBrainzResult, 0, len(resp.ReleaseGroups))
	for _, rg := range resp.ReleaseGroups {
		results = append(results, MusicBrainzResult{
			Suggestion: models.NewAlbum(rg.ID, rg.Title, creditName(rg.ArtistCredit)),
			ArtistID:   creditID(rg.ArtistCredit),
		})
	}
	return keepValid(m.logger, results), nil
}

// SearchRecordings calls GET /ws/2/recording.
func (m *MusicBrainzService) SearchRecordings(ctx context.Context, query string, limit int) ([]MusicBrainzResult, error) {
	var resp struct {
		Recordings []MusicBrainzRecording `json:"recordings"`
	}
	if err := m.search(ctx, "recording", query, limit, &resp); err != nil {
		return nil, fmt.Errorf("failed to search recordings: %w", err)
	}

	results := make([]MusicBrainzResult, 0, len(resp.Recordings))
	for _, r := range resp.Recordings {
		results = append(results, MusicBrainzResult{
			Suggestion: models.NewRecording(r.ID, r.Title, creditName(r.ArtistCredit)),
			ArtistID:   creditID(r.ArtistCredit),
		})
	}
	return keepValid(m.logger, results), nil
}

// creditName joins an artist credit the way MusicBrainz displays it.
func creditName(credits []MusicBrainzArtistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(c.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func creditID(credits []MusicBrainzArtistCredit) string {
	if len(credits) == 0 {
		return ""
	}
	return credits[0].Artist.ID
}

// keepValid drops hits missing the fields their variant requires.
func keepValid(logger *log.Logger, results []MusicBrainzResult) []MusicBrainzResult {
	out := results[:0]
	for _, r := range results {
		if err := r.Suggestion.Validate(); err != nil {
			logger.Debug("skipping search hit", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
