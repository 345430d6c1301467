package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/lidx/internal/formatter"
	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/tasks"
)

var (
	_ list.Item = downloadItem{}
)

// downloadItem wraps [models.DownloadItem] to implement [list.Item].
type downloadItem struct {
	item     models.DownloadItem
	retrying bool
}

func (i downloadItem) FilterValue() string { return i.item.Label() }
func (i downloadItem) Title() string {
	title := fmt.Sprintf("#%d %s", i.item.ID, i.item.Label())
	if i.retrying {
		title += " (retrying)"
	}
	return title
}

func (i downloadItem) Description() string {
	parts := []string{
		fmt.Sprintf("%s %3d%%", formatter.ProgressBar(i.item.Progress, 20), i.item.DisplayProgress()),
		styles.status(i.item.Status).Render(string(i.item.Status)),
	}
	if i.item.Size > 0 {
		parts = append(parts, formatter.FormatBytes(i.item.Size-i.item.SizeLeft)+"/"+formatter.FormatBytes(i.item.Size))
	}
	if i.item.TimeLeft != "" {
		parts = append(parts, "eta "+i.item.TimeLeft)
	}
	if i.item.RetryCount > 0 {
		parts = append(parts, fmt.Sprintf("retries %d/%d", i.item.DisplayRetries(), models.MaxRetries))
	}
	if i.item.ErrorMessage != "" {
		parts = append(parts, styles.err.Render(i.item.ErrorMessage))
	}
	return strings.Join(parts, " • ")
}

// downloadItems converts a poll state into list items in snapshot order.
func downloadItems(state tasks.PollState) []list.Item {
	if state.Snapshot == nil {
		return nil
	}
	items := make([]list.Item, len(state.Snapshot.Items))
	for i, item := range state.Snapshot.Items {
		items[i] = downloadItem{item: item, retrying: state.IsRetrying(item.ID)}
	}
	return items
}
