// Package models defines the data model shared by the API client, the backend service, and the TUI.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): snapshots of external state, rebuilt on every fetch
//   - [DownloadItem] : one tracked transfer in the download queue
//   - [Snapshot] : the full status payload (items plus [Summary])
//   - [Suggestion] : a tagged union of artist, album, and recording search results
//   - [Suggestions] : the three suggestion groups as returned by the suggestion endpoint
//
// 2. Persistent Entities: database-backed records
//   - [RetryAttempt] : one retry command issued for a download
//
// Persistent entities implement the [Model] interface; the [Repository] interface defines their data access.
package models
