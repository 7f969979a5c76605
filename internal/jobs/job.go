package jobs

import (
	"maps"
	"time"

	"songgraph/internal/enrich"
	"songgraph/internal/models"
)

// Stage is the coarse position of a job in its pipeline.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageFetching     Stage = "fetching"
	StageTempo        Stage = "bpm"
	StageLyrics       Stage = "lyrics"
	StageSentiment    Stage = "sentiment"
	StageNormalizing  Stage = "normalizing"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// StageFor returns the stage a job is in while kind's pool runs.
func StageFor(kind models.Kind) Stage {
	switch kind {
	case models.KindTempo:
		return StageTempo
	case models.KindLyrics:
		return StageLyrics
	case models.KindSentiment:
		return StageSentiment
	}
	return StageInitializing
}

func (s Stage) rank() int {
	switch s {
	case StageInitializing:
		return 0
	case StageFetching:
		return 1
	case StageTempo, StageLyrics, StageSentiment:
		return 2
	case StageNormalizing:
		return 3
	case StageComplete, StageError:
		return 4
	}
	return -1
}

// canTransition enforces forward-only movement. The three enrichment stages
// share a rank because the parallel topology runs them side by side.
func canTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	if from.Terminal() || to.rank() < 0 {
		return false
	}
	if to == StageError {
		return true
	}
	return to.rank() >= from.rank()
}

// Job is the registry's record of one enrichment run.
type Job struct {
	ID           string              `json:"job_id"`
	Stage        Stage               `json:"stage"`
	Current      int                 `json:"current"`
	Total        int                 `json:"total"`
	Tracks       []models.Track      `json:"tracks"`
	Message      string              `json:"message,omitempty"`
	Error        string              `json:"error,omitempty"`
	PlaylistName string              `json:"playlist_name,omitempty"`
	OutputKey    string              `json:"output_key,omitempty"`
	Topology     enrich.Topology     `json:"topology"`
	Completed    map[models.Kind]int `json:"completed,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has completed or failed.
func (j Job) Terminal() bool { return j.Stage.Terminal() }

func (j Job) clone() Job {
	c := j
	c.Tracks = models.CloneTracks(j.Tracks)
	c.Completed = maps.Clone(j.Completed)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
