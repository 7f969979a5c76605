package progress

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"songgraph/internal/jobs"
	"songgraph/internal/models"
)

// DefaultInterval is the polling period of a stream.
const DefaultInterval = 50 * time.Millisecond

// reportedKinds are the kinds that produce per-track updates.
var reportedKinds = []models.Kind{models.KindTempo, models.KindSentiment}

// Source returns job snapshots. *jobs.Registry satisfies it.
type Source interface {
	Get(id string) (jobs.Job, error)
}

// Publisher polls a Source and converts what changed between snapshots into
// events.
type Publisher struct {
	source   Source
	interval time.Duration
	logger   *zap.Logger
}

// NewPublisher builds a Publisher. A non-positive interval selects
// DefaultInterval.
func NewPublisher(source Source, interval time.Duration, logger *zap.Logger) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{source: source, interval: interval, logger: logger}
}

// Stream emits the events of one job until it reaches a terminal stage or ctx
// is done. The channel is closed after the final event. Cancelling ctx only
// stops the stream; the job itself keeps running.
func (p *Publisher) Stream(ctx context.Context, jobID string) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		p.run(ctx, jobID, out)
	}()
	return out
}

type streamState struct {
	sent        map[models.Kind]map[string]struct{}
	tracksSent  bool
	lastStage   jobs.Stage
	lastCurrent int
}

func (p *Publisher) run(ctx context.Context, jobID string, out chan<- Event) {
	emit := func(ev Event) bool {
		ev.JobID = jobID
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	st := &streamState{
		sent:        make(map[models.Kind]map[string]struct{}, len(reportedKinds)),
		lastCurrent: -1,
	}
	for _, k := range reportedKinds {
		st.sent[k] = make(map[string]struct{})
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.source.Get(jobID)
		if err != nil {
			msg := "Job not found"
			if !errors.Is(err, jobs.ErrNotFound) {
				msg = err.Error()
			}
			emit(Event{Type: EventError, Message: msg})
			return
		}

		for _, ev := range st.diff(job) {
			if !emit(ev) {
				return
			}
		}

		switch job.Stage {
		case jobs.StageComplete:
			emit(Event{
				Type:         EventComplete,
				Stage:        job.Stage,
				Current:      job.Current,
				Total:        job.Total,
				Message:      job.Message,
				Tracks:       job.Tracks,
				PlaylistName: job.PlaylistName,
				OutputKey:    job.OutputKey,
			})
			p.logger.Debug("stream finished", zap.String("job_id", jobID))
			return
		case jobs.StageError:
			emit(Event{Type: EventError, Stage: job.Stage, Message: job.Error})
			return
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("observer left", zap.String("job_id", jobID))
			return
		case <-ticker.C:
		}
	}
}

// diff returns the events implied by job relative to what this stream has
// already reported, and records them as reported.
func (st *streamState) diff(job jobs.Job) []Event {
	var events []Event
	for _, t := range job.Tracks {
		if t.ID == "" {
			continue
		}
		for _, kind := range reportedKinds {
			if _, done := st.sent[kind][t.ID]; done {
				continue
			}
			if u := updateFor(t, kind); u != nil {
				events = append(events, Event{Type: EventTrackUpdate, Update: u})
				st.sent[kind][t.ID] = struct{}{}
			}
		}
	}

	switch {
	case len(job.Tracks) > 0 && !st.tracksSent:
		events = append(events, Event{
			Type:         EventProgress,
			Stage:        job.Stage,
			Current:      job.Current,
			Total:        len(job.Tracks),
			Message:      job.Message,
			Tracks:       job.Tracks,
			PlaylistName: job.PlaylistName,
		})
		st.tracksSent = true
	case job.Stage != st.lastStage || job.Current != st.lastCurrent:
		events = append(events, Event{
			Type:    EventProgress,
			Stage:   job.Stage,
			Current: job.Current,
			Total:   job.Total,
			Message: job.Message,
		})
	default:
		return events
	}
	st.lastStage = job.Stage
	st.lastCurrent = job.Current
	return events
}
