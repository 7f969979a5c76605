package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxAudioBytes caps a downloaded preview clip.
const MaxAudioBytes = 10 << 20

// AudioDownloader fetches preview clips.
type AudioDownloader struct {
	httpClient *http.Client
}

func NewAudioDownloader(timeout time.Duration) *AudioDownloader {
	return &AudioDownloader{httpClient: &http.Client{Timeout: timeout}}
}

// FetchAudio downloads the clip at url.
func (d *AudioDownloader) FetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxAudioBytes {
		return nil, fmt.Errorf("preview larger than %d bytes", MaxAudioBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty preview")
	}
	return data, nil
}

// TempoAnalyzer posts raw audio to an analysis service that answers with
// {"bpm": <float>}.
type TempoAnalyzer struct {
	httpClient *http.Client
	url        string
}

func NewTempoAnalyzer(url string, timeout time.Duration) *TempoAnalyzer {
	return &TempoAnalyzer{httpClient: &http.Client{Timeout: timeout}, url: url}
}

func (a *TempoAnalyzer) EstimateTempo(ctx context.Context, audio []byte) (float64, error) {
	if a.url == "" {
		return 0, errors.New("tempo analyzer URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(audio))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "audio/mpeg")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body struct {
		BPM   *float64 `json:"bpm"`
		Error string   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode tempo: %w", err)
	}
	if body.Error != "" {
		return 0, errors.New(body.Error)
	}
	if body.BPM == nil || *body.BPM <= 0 {
		return 0, errors.New("no tempo detected")
	}
	return *body.BPM, nil
}
