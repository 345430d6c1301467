package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lidx/internal/formatter"
	"github.com/desertthunder/lidx/internal/shared"
	"github.com/desertthunder/lidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DownloadsStatus fetches one snapshot and prints it as text, JSON or CSV, or exports it to files.
func (r *Runner) DownloadsStatus(ctx context.Context, cmd *cli.Command) error {
	snapshot, err := r.status.DownloadStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch download status: %w", err)
	}

	switch {
	case cmd.Bool("export"):
		result, err := formatter.WriteSnapshotExport(snapshot, cmd.String("output"))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d downloads\n", len(snapshot.Items))
		r.writePlain("Items:   %s\n", result.ItemsFile)
		r.writePlain("Summary: %s\n", result.SummaryFile)
		return nil

	case cmd.Bool("json"):
		return r.writeJSON(snapshot, cmd.Bool("pretty"))

	case cmd.Bool("csv"):
		data, err := formatter.SnapshotToCSV(snapshot)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	r.writePlainHeader("Downloads")
	if _, err := r.output.Write(formatter.SnapshotToText(snapshot, nil)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DownloadsWatch polls the status endpoint and prints every new snapshot until interrupted or --count is reached.
//
// Failed polls are logged and the last snapshot stays on screen.
func (r *Runner) DownloadsWatch(ctx context.Context, cmd *cli.Command) error {
	interval := cmd.Duration("interval")
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", shared.ErrInvalidArgument)
	}
	count := int(cmd.Int("count"))

	poller := tasks.NewStatusPoller(r.status, tasks.PollerOptions{
		Interval:   interval,
		RetryDelay: r.config.Polling.RetryDelay(),
		Logger:     shared.WithLogger(r.logger, "component", "poller"),
	})
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	var (
		printed   int
		lastShown time.Time
		lastErr   string
	)
	for state := range poller.Updates() {
		if state.LastError != nil && state.LastError.Error() != lastErr {
			lastErr = state.LastError.Error()
			r.logger.Warn("status poll failed", "error", state.LastError, "stale", state.Stale())
		}
		if state.LastError == nil {
			lastErr = ""
		}

		if state.Snapshot == nil || !state.UpdatedAt.After(lastShown) {
			continue
		}
		lastShown = state.UpdatedAt

		r.writePlainHeader(fmt.Sprintf("Downloads @ %s", state.UpdatedAt.Format(time.TimeOnly)))
		if _, err := r.output.Write(formatter.SnapshotToText(state.Snapshot, state.Retrying)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		printed++
		if count > 0 && printed >= count {
			return nil
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// DownloadsRetry issues a retry for one download, then waits for the reconciling snapshot and prints the item.
func (r *Runner) DownloadsRetry(ctx context.Context, cmd *cli.Command) error {
	id := int(cmd.IntArg("id"))
	if id <= 0 {
		return fmt.Errorf("%w: download id must be a positive integer", shared.ErrInvalidArgument)
	}

	delay := r.config.Polling.RetryDelay()
	poller := tasks.NewStatusPoller(r.status, tasks.PollerOptions{
		Interval:   r.config.Polling.Interval(),
		RetryDelay: delay,
		Logger:     shared.WithLogger(r.logger, "component", "poller"),
	})
	defer poller.Stop()

	if err := poller.Retry(ctx, id); err != nil {
		return fmt.Errorf("retry of download %d failed: %w", id, err)
	}
	r.writePlain("✓ Retry requested for download #%d\n", id)

	if !cmd.Bool("wait") {
		return nil
	}

	timeout := time.NewTimer(delay + r.config.Client.Timeout())
	defer timeout.Stop()

	for {
		select {
		case state, ok := <-poller.Updates():
			if !ok {
				return nil
			}
			if state.LastError != nil {
				r.logger.Warn("reconciling fetch failed", "error", state.LastError)
				return nil
			}
			if state.Snapshot == nil {
				continue
			}

			if item, ok := state.Snapshot.Item(id); ok {
				r.writePlain("%s\n", formatter.ItemLine(item, false))
			} else {
				r.writePlain("Download #%d is no longer queued\n", id)
			}
			return nil
		case <-timeout.C:
			r.logger.Warn("no reconciling snapshot received", "download", id)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
