package radiobrowser

// Station is one entry of the radio-browser directory.
type Station struct {
	ID          string `json:"stationuuid"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	URLResolved string `json:"url_resolved"`
	Homepage    string `json:"homepage,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countrycode,omitempty"`
	State       string `json:"state,omitempty"`
	Codec       string `json:"codec,omitempty"`
	Bitrate     int    `json:"bitrate,omitempty"`
	Tags        string `json:"tags,omitempty"`
}

// StreamURL returns the URL to play, preferring the one the directory has
// already resolved from playlists.
func (s Station) StreamURL() string {
	if s.URLResolved != "" {
		return s.URLResolved
	}
	return s.URL
}

// Query filters a station search.
type Query struct {
	Name  string
	Limit int
}
