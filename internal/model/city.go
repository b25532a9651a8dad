package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CityID is the provider's numeric city id. Zero means unknown.
// It decodes from either a JSON number or a JSON string.
type CityID int64

func (id *CityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*id = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*id = CityID(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Non-numeric ids carry no identity; the city falls back to its name.
		*id = 0
		return nil
	}
	*id = CityID(math.Trunc(f))
	return nil
}

// IsKnown reports whether the id identifies a provider city.
func (id CityID) IsKnown() bool {
	return id != 0
}

func (id CityID) String() string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(int64(id), 10)
}

// ParseCityID parses a decimal id. Anything else yields zero.
func ParseCityID(s string) CityID {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return CityID(n)
}

// CityKey addresses a city either by id or, when the id is unknown, by name.
type CityKey struct {
	ID   CityID
	Name string
}

// ParseCityKey turns a path or query value into a key: numeric values are ids.
func ParseCityKey(s string) CityKey {
	s = strings.TrimSpace(s)
	if id := ParseCityID(s); id.IsKnown() {
		return CityKey{ID: id}
	}
	return CityKey{Name: s}
}

func IDKey(id CityID) CityKey {
	return CityKey{ID: id}
}

func NameKey(name string) CityKey {
	return CityKey{Name: strings.TrimSpace(name)}
}

func (k CityKey) IsZero() bool {
	return !k.ID.IsKnown() && k.Name == ""
}

func (k CityKey) String() string {
	if k.ID.IsKnown() {
		return k.ID.String()
	}
	return k.Name
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Main struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
	SeaLevel  *int    `json:"sea_level,omitempty"`
	GrndLevel *int    `json:"grnd_level,omitempty"`
}

// Condition is the first entry of the provider's weather array.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Wind struct {
	Speed float64  `json:"speed"`
	Deg   float64  `json:"deg"`
	Gust  *float64 `json:"gust,omitempty"`
}

type Clouds struct {
	All int `json:"all"`
}

type Sys struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// City is the normalized weather record kept in the user's city list.
// Every substructure is always populated.
type City struct {
	ID         CityID          `json:"id"`
	Name       string          `json:"name"`
	Country    string          `json:"country"`
	Coord      Coord           `json:"coord"`
	Temp       int             `json:"temp"`
	Main       Main            `json:"main"`
	Weather    Condition       `json:"weather"`
	Wind       Wind            `json:"wind"`
	Clouds     Clouds          `json:"clouds"`
	Visibility int             `json:"visibility"`
	Dt         int64           `json:"dt"`
	Sys        Sys             `json:"sys"`
	Timezone   int             `json:"timezone"`
	IsFavorite bool            `json:"isFavorite"`
	RawData    json.RawMessage `json:"rawData,omitempty"`
}

// Key returns the city's identity: its id when known, otherwise its name.
func (c City) Key() CityKey {
	if c.ID.IsKnown() {
		return IDKey(c.ID)
	}
	return NameKey(c.Name)
}

// Matches reports whether the city is addressed by k. Ids compare as decimal
// strings; name keys only match cities whose id is unknown, case-insensitively.
func (c City) Matches(k CityKey) bool {
	if k.ID.IsKnown() {
		return c.ID.String() == k.ID.String()
	}
	if k.Name == "" || c.ID.IsKnown() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Name), k.Name)
}

// SameCity reports whether a and b share an identity.
func SameCity(a, b City) bool {
	return a.Matches(b.Key())
}

// HasRawData reports whether a previous provider response is retained.
func (c City) HasRawData() bool {
	raw := bytes.TrimSpace(c.RawData)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Clone returns a copy that shares no mutable memory with c.
func (c City) Clone() City {
	out := c
	if c.RawData != nil {
		out.RawData = append(json.RawMessage(nil), c.RawData...)
	}
	if c.Main.SeaLevel != nil {
		v := *c.Main.SeaLevel
		out.Main.SeaLevel = &v
	}
	if c.Main.GrndLevel != nil {
		v := *c.Main.GrndLevel
		out.Main.GrndLevel = &v
	}
	if c.Wind.Gust != nil {
		v := *c.Wind.Gust
		out.Wind.Gust = &v
	}
	return out
}

// CloneCities copies a list element by element.
func CloneCities(in []City) []City {
	if in == nil {
		return nil
	}
	out := make([]City, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
