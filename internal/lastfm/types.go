package lastfm

// Track is a track listed under a tag.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// topTracksResponse is the JSON response for tag.getTopTracks.
type topTracksResponse struct {
	Tracks struct {
		Track []struct {
			Name   string `json:"name"`
			URL    string `json:"url"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
		Attr struct {
			Tag string `json:"tag"`
		} `json:"@attr"`
	} `json:"tracks"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
