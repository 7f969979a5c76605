// Package progress turns job registry state into a stream of discrete events
// for remote observers.
package progress

import (
	"songgraph/internal/jobs"
	"songgraph/internal/models"
)

// EventType names the kind of an Event.
type EventType string

const (
	EventTrackUpdate EventType = "track_update"
	EventProgress    EventType = "progress"
	EventError       EventType = "error"
	EventComplete    EventType = "complete"
)

// TrackUpdate reports that one field of one track settled.
type TrackUpdate struct {
	TrackID string      `json:"track_id"`
	Field   models.Kind `json:"field"`
	Value   *float64    `json:"value,omitempty"`
	Error   *string     `json:"error,omitempty"`
}

// Event is one message of a progress stream.
type Event struct {
	Type         EventType      `json:"type"`
	JobID        string         `json:"job_id,omitempty"`
	Stage        jobs.Stage     `json:"stage,omitempty"`
	Current      int            `json:"current"`
	Total        int            `json:"total"`
	Message      string         `json:"message,omitempty"`
	Tracks       []models.Track `json:"tracks,omitempty"`
	PlaylistName string         `json:"playlist_name,omitempty"`
	OutputKey    string         `json:"output_key,omitempty"`
	Update       *TrackUpdate   `json:"track_update,omitempty"`
}

// Final reports whether no event follows e.
func (e Event) Final() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// updateFor builds the track_update for kind, or nil when kind has not
// settled on t. Only tempo and sentiment are reported per track.
func updateFor(t models.Track, kind models.Kind) *TrackUpdate {
	if !t.Settled(kind) {
		return nil
	}
	u := &TrackUpdate{TrackID: t.ID, Field: kind}
	switch kind {
	case models.KindTempo:
		u.Value, u.Error = t.Tempo, t.TempoError
	case models.KindSentiment:
		u.Value, u.Error = t.SentimentScore, t.SentimentError
	default:
		return nil
	}
	return u
}
