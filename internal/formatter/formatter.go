// package formatter renders the collaborative queue as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat accepts a format name, "md" and "txt" included. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "plain":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Queue renders entries in format.
func Queue(entries []models.QueueEntry, format Format) ([]byte, error) {
	switch format {
	case FormatText, "":
		return QueueToText(entries), nil
	case FormatMarkdown:
		return QueueToMarkdown(entries), nil
	case FormatCSV:
		return QueueToCSV(entries)
	case FormatJSON:
		return QueueToJSON(entries)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// QueueToCSV writes columns Position, Title, TrackRef, AddedBy, Source, Votes, Voters, AddedAt.
func QueueToCSV(entries []models.QueueEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "TrackRef", "AddedBy", "Source", "Votes", "Voters", "AddedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.Itoa(e.Position),
			e.Title,
			e.TrackRef,
			e.AddedBy,
			string(e.Source),
			strconv.Itoa(e.Votes),
			strings.Join(e.Voters, ";"),
			e.AddedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// QueueToMarkdown renders a numbered list under a heading.
func QueueToMarkdown(entries []models.QueueEntry) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Up next\n\n")
	fmt.Fprintf(&buf, "**Songs**: %d\n\n", len(entries))

	for _, e := range entries {
		fmt.Fprintf(&buf, "%d. %s (%s, %s)", e.Position, e.Title, addedBy(e), votes(e.Votes))
		if e.Source.Seeded() {
			fmt.Fprintf(&buf, " _%s_", e.Source)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// QueueToText renders one line per entry, or a notice when the queue is empty.
func QueueToText(entries []models.QueueEntry) []byte {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("The queue is empty.\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Songs: %d\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&buf, "%d. %s [%s] %s\n", e.Position, e.Title, addedBy(e), votes(e.Votes))
	}

	return buf.Bytes()
}

// QueueToJSON renders entries as an indented JSON array, never null.
func QueueToJSON(entries []models.QueueEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue: %w", err)
	}
	return append(data, '\n'), nil
}

// NowPlaying renders the current track and its progress on one line.
func NowPlaying(np models.NowPlaying) string {
	if !np.Playing || np.Snapshot == nil {
		return "Nothing is playing."
	}
	s := np.Snapshot
	label := s.Name
	if len(s.Artists) > 0 {
		label = fmt.Sprintf("%s - %s", strings.Join(s.Artists, ", "), s.Name)
	}
	return fmt.Sprintf("%s [%s / %s]", label, FormatDuration(s.ProgressMS), FormatDuration(s.DurationMS))
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func addedBy(e models.QueueEntry) string {
	if e.AddedBy == "" {
		return "unknown"
	}
	return e.AddedBy
}

func votes(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", n)
}
