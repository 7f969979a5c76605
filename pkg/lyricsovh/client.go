// Package lyricsovh looks up song lyrics on lyrics.ovh.
package lyricsovh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.lyrics.ovh"

// lyricsResponse is shaped for the API response.
type lyricsResponse struct {
	Lyrics string `json:"lyrics"`
	Error  string `json:"error"`
}

// Client fetches lyrics by artist and title.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "songgraph/1.0",
	}
}

// FetchLyrics returns the lyric text. found is false when the service does
// not know the song.
func (c *Client) FetchLyrics(ctx context.Context, title, artist string) (string, bool, error) {
	if title == "" || artist == "" {
		return "", false, nil
	}
	reqURL := fmt.Sprintf("%s/v1/%s/%s", c.baseURL, url.PathEscape(artist), url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body lyricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("decode lyrics: %w", err)
	}
	text := strings.TrimSpace(body.Lyrics)
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}
