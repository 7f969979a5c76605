package spotify

// tokenResponse is the client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Image is one rendition of a cover picture.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// PlaylistResponse is the playlist object without its track pages.
type PlaylistResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Images      []Image `json:"images"`
	Public      bool    `json:"public"`
	Owner       struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// TracksPage is one page of playlist items. Next is empty on the last page.
type TracksPage struct {
	Items []PlaylistItem `json:"items"`
	Next  string         `json:"next"`
	Total int            `json:"total"`
}

// PlaylistItem wraps a track; Track is nil for removed or local items.
type PlaylistItem struct {
	Track *TrackObject `json:"track"`
}

// TrackObject is the subset of the track object used for enrichment.
type TrackObject struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	PreviewURL string `json:"preview_url"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string  `json:"name"`
		ReleaseDate string  `json:"release_date"`
		Images      []Image `json:"images"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}
