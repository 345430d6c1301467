package models

import (
	"fmt"
	"time"
)

// RetryAttempt records one retry command issued for a download.
type RetryAttempt struct {
	id         string
	sequence   int
	downloadID int
	albumID    int
	succeeded  bool
	errMsg     string
	createdAt  time.Time
}

var _ Model = (*RetryAttempt)(nil)

// NewRetryAttempt creates an attempt for downloadID. cause is nil when the command succeeded.
func NewRetryAttempt(downloadID, albumID int, cause error) *RetryAttempt {
	a := &RetryAttempt{
		downloadID: downloadID,
		albumID:    albumID,
		succeeded:  cause == nil,
		createdAt:  time.Now().UTC(),
	}
	if cause != nil {
		a.errMsg = cause.Error()
	}
	return a
}

// RestoreRetryAttempt rebuilds an attempt from stored columns.
func RestoreRetryAttempt(id string, sequence, downloadID, albumID int, succeeded bool, errMsg string, createdAt time.Time) *RetryAttempt {
	return &RetryAttempt{
		id:         id,
		sequence:   sequence,
		downloadID: downloadID,
		albumID:    albumID,
		succeeded:  succeeded,
		errMsg:     errMsg,
		createdAt:  createdAt,
	}
}

func (a *RetryAttempt) ID() string           { return a.id }
func (a *RetryAttempt) Sequence() int        { return a.sequence }
func (a *RetryAttempt) DownloadID() int      { return a.downloadID }
func (a *RetryAttempt) AlbumID() int         { return a.albumID }
func (a *RetryAttempt) Succeeded() bool      { return a.succeeded }
func (a *RetryAttempt) Error() string        { return a.errMsg }
func (a *RetryAttempt) CreatedAt() time.Time { return a.createdAt }

func (a *RetryAttempt) SetID(id string)     { a.id = id }
func (a *RetryAttempt) SetSequence(seq int) { a.sequence = seq }

// Validate checks the attempt references a download.
func (a *RetryAttempt) Validate() error {
	if a.id == "" {
		return fmt.Errorf("retry attempt id is required")
	}
	if a.downloadID <= 0 {
		return fmt.Errorf("retry attempt download id must be positive, got %d", a.downloadID)
	}
	return nil
}
