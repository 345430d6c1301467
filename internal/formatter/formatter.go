// package formatter renders download snapshots and suggestions as text, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes formats n in binary (1024-based) units with one decimal place, e.g. "1.5 MB".
// Values under 1 KB are shown as whole bytes.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}

// ProgressBar renders a clamped percentage as a fixed-width bar.
func ProgressBar(progress, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := models.ClampProgress(progress) * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// SummaryLine renders the snapshot summary in one line.
func SummaryLine(s models.Summary) string {
	return fmt.Sprintf("%d downloads, %d stuck, %d open issues", s.Total, s.Stuck, s.OpenIssues)
}

// ItemLine renders one download in one line. retrying marks an item with a retry pending.
func ItemLine(item models.DownloadItem, retrying bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%-5d %s %3d%%  %-9s", item.ID, ProgressBar(item.Progress, 20), item.DisplayProgress(), item.Status)

	if item.Size > 0 {
		fmt.Fprintf(&b, "  %s/%s", FormatBytes(item.Size-item.SizeLeft), FormatBytes(item.Size))
	}
	if item.TimeLeft != "" {
		fmt.Fprintf(&b, "  eta %s", item.TimeLeft)
	}
	if item.RetryCount > 0 {
		fmt.Fprintf(&b, "  retries %d/%d", item.DisplayRetries(), models.MaxRetries)
	}
	if retrying {
		b.WriteString("  (retrying)")
	}

	b.WriteString("  ")
	b.WriteString(item.Label())
	return b.String()
}

// SnapshotToText renders a snapshot as plain text with status messages indented under their item.
func SnapshotToText(snapshot *models.Snapshot, retrying map[int]bool) []byte {
	var buf bytes.Buffer

	if snapshot == nil {
		buf.WriteString("No status received yet\n")
		return buf.Bytes()
	}

	buf.WriteString(SummaryLine(snapshot.Summary) + "\n")
	if !snapshot.FetchedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Updated: %s\n", snapshot.FetchedAt.Format(time.TimeOnly)))
	}
	buf.WriteString("\n")

	if len(snapshot.Items) == 0 {
		buf.WriteString("Queue is empty\n")
		return buf.Bytes()
	}

	for _, item := range snapshot.Items {
		buf.WriteString(ItemLine(item, retrying[item.ID]) + "\n")
		if item.ErrorMessage != "" {
			buf.WriteString(fmt.Sprintf("        ! %s\n", item.ErrorMessage))
		}
		for _, msg := range item.StatusMessages {
			buf.WriteString(fmt.Sprintf("        - %s\n", msg))
		}
	}

	return buf.Bytes()
}

// SnapshotToCSV converts a snapshot to CSV with columns: ID, Artist, Album, Title, Status, Progress, Retries, Stuck, Size, Remaining, TimeLeft, TrackedStatus, TrackedState
func SnapshotToCSV(snapshot *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Artist", "Album", "Title", "Status", "Progress", "Retries", "Stuck", "Size", "Remaining", "TimeLeft", "TrackedStatus", "TrackedState"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	if snapshot != nil {
		for _, item := range snapshot.Items {
			record := []string{
				strconv.Itoa(item.ID),
				item.Artist,
				item.Album,
				item.Title,
				string(item.Status),
				strconv.Itoa(item.DisplayProgress()),
				strconv.Itoa(item.DisplayRetries()),
				strconv.FormatBool(item.Stuck),
				FormatBytes(item.Size),
				FormatBytes(item.SizeLeft),
				item.TimeLeft,
				item.TrackedDownloadStatus,
				item.TrackedDownloadState,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SuggestionsToText renders suggestions grouped under Artists, Albums and Songs.
// highlight indexes the flattened list; the highlighted row is marked with ">".
func SuggestionsToText(suggestions *models.Suggestions, highlight int) []byte {
	var buf bytes.Buffer

	if suggestions.Len() == 0 {
		buf.WriteString("No suggestions\n")
		return buf.Bytes()
	}

	index := 0
	for _, group := range suggestions.Groups() {
		buf.WriteString(group.Kind.Label() + "\n")
		for _, s := range group.Items {
			marker := " "
			if index == highlight {
				marker = ">"
			}
			line := fmt.Sprintf("%s %s", marker, s.Display())
			if s.InLibrary {
				line += " (in library)"
			}
			buf.WriteString(line + "\n")
			index++
		}
	}

	return buf.Bytes()
}

// SnapshotExportResult contains the paths of files created by WriteSnapshotExport
type SnapshotExportResult struct {
	ItemsFile   string
	SummaryFile string
}

// WriteSnapshotExport writes a snapshot to CSV with an accompanying summary JSON file.
//
// Defaults to downloads_{unix time} as the base filename & creates {base}_items.csv and {base}_summary.json
func WriteSnapshotExport(snapshot *models.Snapshot, baseFilepath string) (*SnapshotExportResult, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: no snapshot to export", shared.ErrInvalidInput)
	}
	if baseFilepath == "" {
		baseFilepath = fmt.Sprintf("downloads_%d", time.Now().Unix())
	}

	csvData, err := SnapshotToCSV(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	itemsFile := baseFilepath + "_items.csv"
	if err := os.WriteFile(itemsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	summaryJSON, err := shared.MarshalJSON(snapshot.Summary, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary JSON: %w", err)
	}

	summaryFile := baseFilepath + "_summary.json"
	if err := os.WriteFile(summaryFile, summaryJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary file: %w", err)
	}

	return &SnapshotExportResult{
		ItemsFile:   itemsFile,
		SummaryFile: summaryFile,
	}, nil
}
