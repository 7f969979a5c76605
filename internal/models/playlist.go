package models

import "time"

// Playlist is a persisted, fully enriched collection.
type Playlist struct {
	Name      string    `json:"playlist_name"`
	Tracks    []Track   `json:"tracks"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// PlaylistSummary is the listing view of a persisted collection.
type PlaylistSummary struct {
	Name       string `json:"name"`
	Key        string `json:"filename"`
	TrackCount int    `json:"track_count"`
}

// PlaylistMetadata describes a remote playlist without its tracks.
type PlaylistMetadata struct {
	ID           string `json:"playlist_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Owner        string `json:"owner,omitempty"`
	TotalTracks  int    `json:"total_tracks"`
	Public       bool   `json:"public"`
	Followers    int    `json:"followers"`
}
