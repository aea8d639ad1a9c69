// package formatter renders catalog and job listings as CSV, JSON and terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects an output encoding for listings.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, csv or json)", s)
	}
}

// TracksCSV converts tracks to CSV with columns: Name, Bytes, Modified
func TracksCSV(tracks []models.Track) ([]byte, error) {
	records := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		records = append(records, []string{
			t.Name,
			strconv.FormatInt(t.Size, 10),
			t.ModTime.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV([]string{"Name", "Bytes", "Modified"}, records)
}

// JobsCSV converts jobs to CSV with columns: ID, Status, Title, Filename, Bytes, Error, Started, Completed
func JobsCSV(jobs []*models.IngestJob) ([]byte, error) {
	records := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		completed := ""
		if at := j.CompletedAt(); at != nil {
			completed = at.UTC().Format(time.RFC3339)
		}
		records = append(records, []string{
			j.ID(),
			string(j.Status()),
			j.Title(),
			j.Filename(),
			strconv.FormatInt(j.BytesWritten(), 10),
			j.ErrorMessage(),
			j.StartedAt().UTC().Format(time.RFC3339),
			completed,
		})
	}
	return writeCSV([]string{"ID", "Status", "Title", "Filename", "Bytes", "Error", "Started", "Completed"}, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
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

// ToJSON pretty-prints v followed by a newline.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// TracksTable renders tracks with human-readable sizes and ages.
func TracksTable(tracks []models.Track, now time.Time) string {
	tw := newTable("#", "Name", "Size", "Modified")
	var total int64
	for i, t := range tracks {
		total += t.Size
		tw.AppendRow(table.Row{i + 1, t.Name, humanize.IBytes(uint64(t.Size)), humanize.RelTime(t.ModTime, now, "ago", "from now")})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d tracks", len(tracks)), humanize.IBytes(uint64(total)), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

// JobsTable renders ingest jobs, newest first as given.
func JobsTable(jobs []*models.IngestJob, now time.Time) string {
	tw := newTable("Seq", "Status", "Title", "Size", "Started", "Error")
	for _, j := range jobs {
		title := j.Title()
		if title == "" {
			title = j.SourceURL()
		}
		tw.AppendRow(table.Row{
			j.Sequence(),
			string(j.Status()),
			text.Trim(title, 48),
			humanize.IBytes(uint64(j.BytesWritten())),
			humanize.RelTime(j.StartedAt(), now, "ago", "from now"),
			text.Trim(j.ErrorMessage(), 40),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row(headers))
	return tw
}

// WriteFile saves rendered output to path, creating or truncating it.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
