package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	accountsURL = "https://accounts.spotify.com/api/token"
	apiURL      = "https://api.spotify.com/v1"
)

// Client talks to the Web API with an app-only token.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	clientID     string
	clientSecret string

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		userAgent:    "songgraph/1.0",
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// accessToken returns a cached token, requesting a new one shortly before
// the old one expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("spotify client credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, accountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	c.token = tok.AccessToken
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

// getJSON fetches an absolute API URL and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)
	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// FetchPlaylist returns the playlist object for id.
func (c *Client) FetchPlaylist(ctx context.Context, id string) (*PlaylistResponse, error) {
	params := url.Values{}
	params.Set("fields", "id,name,description,images,public,owner(id,display_name),followers(total),tracks(total)")
	var resp PlaylistResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/playlists/%s?%s", apiURL, url.PathEscape(id), params.Encode()), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchTracksPage returns one page of playlist items. An empty next requests
// the first page.
func (c *Client) FetchTracksPage(ctx context.Context, id, next string) (*TracksPage, error) {
	if next == "" {
		params := url.Values{}
		params.Set("limit", "100")
		next = fmt.Sprintf("%s/playlists/%s/tracks?%s", apiURL, url.PathEscape(id), params.Encode())
	}
	var page TracksPage
	if err := c.getJSON(ctx, next, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
