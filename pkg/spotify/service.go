// Package spotify loads playlists and their tracks from the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"songgraph/internal/enrich"
	"songgraph/internal/models"
)

// PlaylistService turns API pages into tracks ready for enrichment.
type PlaylistService struct {
	client *Client
}

func NewPlaylistService(client *Client) *PlaylistService {
	return &PlaylistService{client: client}
}

// ExtractPlaylistID accepts a playlist URL, a spotify: URI or a bare id.
func ExtractPlaylistID(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "spotify.com") {
		if _, after, ok := strings.Cut(ref, "playlist/"); ok {
			ref = after
		}
		ref, _, _ = strings.Cut(ref, "?")
		return strings.Trim(ref, "/")
	}
	if strings.HasPrefix(ref, "spotify:playlist:") {
		return strings.TrimPrefix(ref, "spotify:playlist:")
	}
	return ref
}

// ParsePlaylistID extracts the playlist id from ref and checks that it is a
// non-empty base62 string.
func ParsePlaylistID(ref string) (string, error) {
	id := ExtractPlaylistID(ref)
	if id == "" {
		return "", fmt.Errorf("%w: empty", enrich.ErrInvalidReference)
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", fmt.Errorf("%w: %q", enrich.ErrInvalidReference, ref)
		}
	}
	return id, nil
}

// ValidateReference reports whether ref names a playlist at all, without
// calling the API.
func (s *PlaylistService) ValidateReference(ref string) error {
	_, err := ParsePlaylistID(ref)
	return err
}

// AlbumArtURL prefers the 300px rendition, then anything larger, then the
// first image.
func AlbumArtURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	for _, img := range images {
		if img.Height == 300 {
			return img.URL
		}
	}
	for _, img := range images {
		if img.Height > 300 {
			return img.URL
		}
	}
	return images[0].URL
}

// FetchMetadata returns playlist details without tracks.
func (s *PlaylistService) FetchMetadata(ctx context.Context, ref string) (models.PlaylistMetadata, error) {
	id, err := ParsePlaylistID(ref)
	if err != nil {
		return models.PlaylistMetadata{}, err
	}
	p, err := s.client.FetchPlaylist(ctx, id)
	if err != nil {
		return models.PlaylistMetadata{}, fmt.Errorf("fetch playlist %s: %w", id, err)
	}
	owner := p.Owner.DisplayName
	if owner == "" {
		owner = p.Owner.ID
	}
	var thumb string
	if len(p.Images) > 0 {
		thumb = p.Images[0].URL
	}
	return models.PlaylistMetadata{
		ID:           id,
		Name:         p.Name,
		Description:  p.Description,
		ThumbnailURL: thumb,
		Owner:        owner,
		TotalTracks:  p.Tracks.Total,
		Public:       p.Public,
		Followers:    p.Followers.Total,
	}, nil
}

// FetchTracks follows every page of the playlist and returns its tracks in
// order together with the playlist name. Removed and local items are
// skipped.
func (s *PlaylistService) FetchTracks(ctx context.Context, ref string) ([]models.Track, string, error) {
	id, err := ParsePlaylistID(ref)
	if err != nil {
		return nil, "", err
	}
	p, err := s.client.FetchPlaylist(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("fetch playlist %s: %w", id, err)
	}

	var tracks []models.Track
	next := ""
	for {
		page, err := s.client.FetchTracksPage(ctx, id, next)
		if err != nil {
			return nil, "", fmt.Errorf("fetch tracks of %s: %w", id, err)
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, toTrack(item.Track))
		}
		if page.Next == "" {
			break
		}
		next = page.Next
	}
	return tracks, p.Name, nil
}

func toTrack(t *TrackObject) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{
		ID:               t.ID,
		Title:            t.Name,
		Artists:          artists,
		Album:            t.Album.Name,
		AlbumArtURL:      AlbumArtURL(t.Album.Images),
		AlbumReleaseDate: t.Album.ReleaseDate,
		DurationMS:       t.DurationMS,
		Popularity:       t.Popularity,
		TrackURL:         t.ExternalURLs.Spotify,
		PreviewURL:       t.PreviewURL,
	}
}
