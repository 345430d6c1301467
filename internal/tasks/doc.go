// Package tasks holds the two long-lived client components: the download status poller and the typeahead search session.
//
// # Status Polling
//
// [StatusPoller] fetches a [models.Snapshot] immediately on [StatusPoller.Start] and then on every tick.
//
//	Loading --first success--> Ready --tick--> Ready
//	                             |--failure--> Ready (previous snapshot kept, LastError set)
//
// Snapshots are replaced wholesale; there is no merge with the previous one. A failed tick is logged and the old
// snapshot stays visible, so once data has arrived the phase never goes back to Loading.
//
// [StatusPoller.Retry] is user-initiated and returns its error. While the command is pending the item is marked
// retrying; afterwards a single reconciling fetch runs after the retry delay instead of patching the item locally.
//
// [StatusPoller.Stop] stops the ticker and pending follow-up timers. Fetches still in flight finish but are ignored.
//
// # Typeahead Search
//
// [SearchSession] debounces keystrokes: each [SearchSession.SetQuery] stops the previous timer, and only the last
// timer fetches. Queries shorter than the minimum length clear the dropdown without a request.
//
// Each fetch captures its query when issued. On arrival the captured query is compared with the current one and
// stale results are dropped, so a slow response for "ra" never replaces the results for "radio".
//
// Navigation runs over [models.Suggestions.Flatten]: Artists, then Albums, then Songs, each in upstream order.
// The highlight stays within [-1, n-1], where -1 means nothing is highlighted.
//
// # Updates
//
// Both components publish a copy of their state on a channel with a buffer of one. Sends never block: an unread
// state is replaced by the newer one. Channels are closed on Stop/Close.
package tasks
