package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lidx/internal/shared"
	"github.com/desertthunder/lidx/internal/tasks"
	"github.com/desertthunder/lidx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive downloads & search terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.status == nil || r.suggestions == nil {
		return fmt.Errorf("%w: backend client not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)
	if r.api != nil {
		r.api.SetLogger(shared.WithLogger(fileLogger, "component", "client"))
	}

	poller := tasks.NewStatusPoller(r.status, tasks.PollerOptions{
		Interval:   r.config.Polling.Interval(),
		RetryDelay: r.config.Polling.RetryDelay(),
		Logger:     shared.WithLogger(fileLogger, "component", "poller"),
	})

	model := ui.NewModel(ctx, ui.Options{
		Poller:      poller,
		Suggestions: r.suggestions,
		Search: tasks.SearchOptions{
			Debounce:  r.config.Search.Debounce(),
			MinLength: r.config.Search.MinLength,
			Limit:     r.config.Search.Limit,
		},
		Logger: shared.WithLogger(fileLogger, "component", "ui"),
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
