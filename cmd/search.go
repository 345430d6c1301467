package main

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/lidx/internal/formatter"
	"github.com/desertthunder/lidx/internal/shared"
	"github.com/desertthunder/lidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SearchSuggest runs one query through a search session and prints the grouped suggestions.
func (r *Runner) SearchSuggest(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	minLength := r.config.Search.MinLength
	if utf8.RuneCountInString(strings.TrimSpace(query)) < minLength {
		return fmt.Errorf("%w: query must be at least %d characters", shared.ErrInvalidArgument, minLength)
	}

	session := tasks.NewSearchSession(r.suggestions, tasks.SearchOptions{
		Debounce:  r.config.Search.Debounce(),
		MinLength: minLength,
		Limit:     int(cmd.Int("limit")),
		Logger:    shared.WithLogger(r.logger, "component", "search"),
	})
	defer session.Close()

	if err := session.SetQuery(query); err != nil {
		return err
	}

	timeout := time.NewTimer(r.config.Search.Debounce() + r.config.Client.Timeout())
	defer timeout.Stop()

	var state tasks.SearchState
wait:
	for {
		select {
		case next, ok := <-session.Updates():
			if !ok {
				return shared.ErrSessionClosed
			}
			if next.Issued == query && !next.Loading {
				state = next
				break wait
			}
		case <-timeout.C:
			return fmt.Errorf("%w: no suggestions received for %q", shared.ErrTimeout, query)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if state.LastError != nil {
		return fmt.Errorf("suggestion search failed: %w", state.LastError)
	}

	if cmd.Bool("json") {
		return r.writeJSON(state.Suggestions, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Suggestions for %q", query))
	if _, err := r.output.Write(formatter.SuggestionsToText(state.Suggestions, -1)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
