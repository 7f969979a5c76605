package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"songgraph/internal/models"
)

func newTable(headers ...string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	return tw
}

func renderSummaries(summaries []models.PlaylistSummary) string {
	tw := newTable("Name", "Key", "Tracks")
	for _, s := range summaries {
		tw.AppendRow(table.Row{s.Name, s.Key, s.TrackCount})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	return tw.Render()
}

func renderTracks(tracks []models.Track) string {
	tw := newTable("#", "Title", "Artist", "BPM", "Sentiment", "Notes")
	for i, t := range tracks {
		tw.AppendRow(table.Row{
			i + 1,
			t.Title,
			strings.Join(t.Artists, ", "),
			formatFloat(t.Tempo, "%.1f"),
			formatFloat(t.SentimentScore, "%.3f"),
			trackNotes(t),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func trackNotes(t models.Track) string {
	var notes []string
	for _, e := range []*string{t.TempoError, t.LyricsError, t.SentimentError} {
		if e != nil {
			notes = append(notes, *e)
		}
	}
	return strings.Join(notes, "; ")
}
