package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"

	"songgraph/internal/enrich"
	"songgraph/internal/jobs"
	"songgraph/internal/models"
	"songgraph/internal/orchestrator"
	"songgraph/internal/progress"
	"songgraph/internal/storage"
)

type fakeCatalog struct{}

func (fakeCatalog) FetchMetadata(_ context.Context, ref string) (models.PlaylistMetadata, error) {
	if ref != "pl-1" {
		return models.PlaylistMetadata{}, errors.New("playlist not found")
	}
	return models.PlaylistMetadata{ID: "pl-1", Name: "Focus", TotalTracks: 2}, nil
}

func (fakeCatalog) FetchTracks(_ context.Context, ref string) ([]models.Track, string, error) {
	if ref != "pl-1" {
		return nil, "", errors.New("playlist not found")
	}
	return []models.Track{{ID: "a", Title: "One"}, {ID: "b", Title: "Two"}}, "Focus", nil
}

func (fakeCatalog) ValidateReference(ref string) error {
	if strings.ContainsAny(ref, " /") {
		return fmt.Errorf("%w: %q", enrich.ErrInvalidReference, ref)
	}
	return nil
}

func stage(kind models.Kind, fill func(*models.Track)) *enrich.Stage {
	return enrich.NewStage(enrich.EnricherFunc{K: kind, Fn: func(_ context.Context, tr models.Track) (models.Track, error) {
		fill(&tr)
		return tr, nil
	}}, 2, time.Second, nil)
}

type fixture struct {
	server   *httptest.Server
	registry *jobs.Registry
	store    storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := jobs.NewRegistry()
	pipeline := enrich.NewPipeline(
		stage(models.KindTempo, func(tr *models.Track) { tr.Tempo = lo.ToPtr(100.0) }),
		stage(models.KindLyrics, func(tr *models.Track) { tr.Lyrics = lo.ToPtr("la la") }),
		stage(models.KindSentiment, func(tr *models.Track) { tr.SentimentScore = lo.ToPtr(float64(len(tr.Title)) / 10) }),
		nil,
	)
	store := storage.NewFileStore(t.TempDir(), nil)
	o := orchestrator.New(context.Background(), registry, pipeline, fakeCatalog{}, orchestrator.WithStore(store))
	t.Cleanup(o.Wait)

	publisher := progress.NewPublisher(registry, 5*time.Millisecond, nil)
	srv := httptest.NewServer(New(o, publisher, store, fakeCatalog{}, nil).Handler())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, registry: registry, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	td.Require(t).CmpNoError(err)
	resp, err := http.DefaultClient.Do(req)
	td.Require(t).CmpNoError(err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *fixture) waitTerminal(t *testing.T, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.registry.Get(id)
		td.Require(t).CmpNoError(err)
		if job.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return jobs.Job{}
}

func readEvents(t *testing.T, url string) []progress.Event {
	t.Helper()
	resp, err := http.Get(url)
	td.Require(t).CmpNoError(err)
	defer resp.Body.Close()
	td.Cmp(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var events []progress.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev progress.Event
		td.Require(t).CmpNoError(json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/api/health", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body, map[string]any{"status": "ok"})
}

func TestSubmitFeaturesAndStream(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/process-features",
		`{"tracks":[{"track_id":"x","title":"Short"},{"track_id":"y","title":"Much longer"}],"playlist_name":"Mix"}`)
	td.Require(t).Cmp(status, http.StatusOK)
	id, _ := body["job_id"].(string)
	td.Require(t).NotEmpty(id)

	job := f.waitTerminal(t, id)
	td.Cmp(t, job.Stage, jobs.StageComplete)
	td.Cmp(t, job.Topology, enrich.Parallel)
	td.Cmp(t, job.OutputKey, "Mix.json")

	status, snap := f.do(t, http.MethodGet, "/api/progress/"+id, "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, snap["stage"], "complete")

	events := readEvents(t, f.server.URL+"/api/progress-stream/"+id)
	td.Require(t).NotEmpty(events)
	last := events[len(events)-1]
	td.Cmp(t, last.Type, progress.EventComplete)
	td.Cmp(t, last.JobID, id)
	td.CmpLen(t, last.Tracks, 2)

	updates := lo.Filter(events, func(ev progress.Event, _ int) bool { return ev.Type == progress.EventTrackUpdate })
	td.CmpLen(t, updates, 4, "tempo and sentiment once per track")
}

func TestSubmitPlaylistStream(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/process-playlist-stream", `{"playlist_url":"pl-1"}`)
	td.Require(t).Cmp(status, http.StatusOK)
	job := f.waitTerminal(t, body["job_id"].(string))
	td.Cmp(t, job.Stage, jobs.StageComplete)
	td.Cmp(t, job.Topology, enrich.Sequential)
	td.Cmp(t, job.PlaylistName, "Focus")

	status, _ = f.do(t, http.MethodPost, "/api/process-playlist-stream", `{"playlist_url":"missing"}`)
	td.Cmp(t, status, http.StatusOK, "fetch failures surface on the job")

	status, body = f.do(t, http.MethodPost, "/api/process-playlist-stream", `{}`)
	td.Cmp(t, status, http.StatusBadRequest)
	td.Cmp(t, body["detail"], "playlist_url is required")

	status, _ = f.do(t, http.MethodPost, "/api/process-playlist-stream", `not json`)
	td.Cmp(t, status, http.StatusBadRequest)

	status, _ = f.do(t, http.MethodPost, "/api/process-features", `{"tracks":[]}`)
	td.Cmp(t, status, http.StatusBadRequest)
}

func TestProcessPlaylistSync(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/process-playlist", `{"playlist_url":"pl-1"}`)
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body, td.SuperMapOf(map[string]any{
		"playlist_name": "Focus",
		"track_count":   float64(2),
		"output_file":   "Focus.json",
	}, nil))

	status, body = f.do(t, http.MethodPost, "/api/process-playlist", `{"playlist_url":"missing"}`)
	td.Cmp(t, status, http.StatusBadGateway)
	td.Cmp(t, body["detail"], td.Contains("playlist not found"))

	status, body = f.do(t, http.MethodPost, "/api/process-playlist", `{"playlist_url":"pl-1","topology":"diagonal"}`)
	td.Cmp(t, status, http.StatusBadRequest)
	td.Cmp(t, body["detail"], td.Contains(`unknown topology "diagonal"`))

	status, _ = f.do(t, http.MethodPost, "/api/process-playlist", `{"playlist_url":"not a playlist"}`)
	td.Cmp(t, status, http.StatusBadRequest)

	status, _ = f.do(t, http.MethodPost, "/api/process-playlist-stream", `{"playlist_url":"not a playlist"}`)
	td.Cmp(t, status, http.StatusBadRequest, "rejected before a job is created")
	td.CmpLen(t, f.registry.List(), 2, "only the two valid synchronous runs created jobs")
}

func TestProgressUnknownJob(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/progress/nope", "")
	td.Cmp(t, status, http.StatusNotFound)
	td.Cmp(t, body["detail"], "Job not found")

	events := readEvents(t, f.server.URL+"/api/progress-stream/nope")
	td.Cmp(t, events, []progress.Event{{Type: progress.EventError, JobID: "nope", Message: "Job not found"}})
}

func TestPlaylists(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Save(context.Background(), "Late Night", []models.Track{{ID: "1", Title: "A"}})
	td.Require(t).CmpNoError(err)

	status, body := f.do(t, http.MethodGet, "/api/playlists", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body["playlists"], []any{map[string]any{
		"name": "Late Night", "filename": "Late_Night.json", "track_count": float64(1),
	}})

	status, body = f.do(t, http.MethodGet, "/api/playlists/Late%20Night", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body["track_count"], float64(1))

	status, _ = f.do(t, http.MethodGet, "/api/playlists/Nothing", "")
	td.Cmp(t, status, http.StatusNotFound)
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/playlist-metadata?playlist_url=pl-1", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body["name"], "Focus")

	status, body = f.do(t, http.MethodGet, "/api/playlist-with-tracks?playlist_url=pl-1", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body["track_count"], float64(2))

	status, _ = f.do(t, http.MethodGet, "/api/playlist-metadata", "")
	td.Cmp(t, status, http.StatusBadRequest)

	status, _ = f.do(t, http.MethodGet, "/api/playlist-metadata?playlist_url=zzz", "")
	td.Cmp(t, status, http.StatusBadGateway)

	status, body = f.do(t, http.MethodGet, "/api/playlist-tracks?playlist_url=pl-1", "")
	td.Cmp(t, status, http.StatusOK)
	td.Cmp(t, body["playlist_name"], "Focus")
	td.Cmp(t, body["tracks"], td.All(
		td.Len(2),
		td.ArrayEach(td.SuperMapOf(map[string]any{"tempo": float64(100)}, nil)),
		td.ArrayEach(td.Not(td.ContainsKey("sentiment_score"))),
	))

	status, _ = f.do(t, http.MethodGet, "/api/playlist-tracks?playlist_url=zzz", "")
	td.Cmp(t, status, http.StatusBadGateway)
	status, _ = f.do(t, http.MethodGet, "/api/playlist-tracks?playlist_url=a%20b", "")
	td.Cmp(t, status, http.StatusBadRequest)
}

func TestListenAndServeShutdown(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		td.CmpNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
