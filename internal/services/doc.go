// Package services talks HTTP: to the lidx backend on the client side, and to Lidarr and MusicBrainz on the backend side.
//
// # Sources
//
// [StatusSource] and [SuggestionSource] are what the status poller and the search session consume.
// [APIService] implements both against the lidx backend; [LibraryService] implements both against the upstreams.
//
// # Request Coalescing
//
// [Coordinator] keeps at most one call in flight per key. Callers arriving while a call is running wait for it
// and receive the same value or error. The key is released as soon as the call settles, including when the
// operation panics, so a failure is never cached.
//
// The API client keys every GET as "METHOD path?query" with the query sorted, e.g.
//
//	GET /api/search/suggestions?limit=5&query=radiohead
//
// The backend keys its upstream reads by source: "lidarr:queue", "lidarr:artists",
// and "musicbrainz:<kind>:<query>:<limit>".
//
// # Authentication
//
// [APIService] attaches a bearer token through an [oauth2.Transport] with a static token source.
// A 401 comes back as [shared.ErrUnauthorized] and is not logged as an error.
// [LidarrService] sends the X-Api-Key header. [MusicBrainzService] needs no credentials but identifies itself with a
// User-Agent carrying the configured contact, and is throttled by a [rate.Limiter].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : non-2xx response
//   - [shared.ErrUnauthorized] : rejected token or API key
//   - [shared.ErrServiceUnavailable] : transport failure or upstream throttling
//   - [shared.ErrTimeout] : request deadline exceeded
//   - [shared.ErrDownloadNotFound] : retry for an id not in the queue
//   - [shared.ErrOperationPanicked] : a coalesced operation panicked
//
// # Status Mapping
//
// [QueueItem] folds Lidarr's status, trackedDownloadStatus and trackedDownloadState into one
// [models.DownloadStatus]. Items stuck in import or failed are flagged Stuck and can be retried, which removes the
// release from the download client with a blocklist entry and starts an AlbumSearch.
package services
