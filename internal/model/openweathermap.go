package model

// OpenWeatherMapResponse is the current weather payload. Every nested field is
// optional so absent sections can be told apart from zero values.
type OpenWeatherMapResponse struct {
	ID         CityID      `json:"id"`
	Name       string      `json:"name"`
	Coord      *Coord      `json:"coord"`
	Main       *Main       `json:"main"`
	Weather    []Condition `json:"weather"`
	Wind       *Wind       `json:"wind"`
	Clouds     *Clouds     `json:"clouds"`
	Visibility *int        `json:"visibility"`
	Dt         *int64      `json:"dt"`
	Sys        *Sys        `json:"sys"`
	Timezone   *int        `json:"timezone"`
}

// GeoLocation is one candidate of the direct geocoding endpoint.
type GeoLocation struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
}

// APIErrorResponse is the provider's error body.
type APIErrorResponse struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}
