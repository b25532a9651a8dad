package model

import (
	"encoding/json"
	"math"
	"time"
)

const (
	defaultPressure   = 1013
	defaultHumidity   = 70
	defaultVisibility = 10000
	defaultIcon       = "50d"
	// sunOffset is used to synthesize sunrise and sunset around now.
	sunOffset = 6 * time.Hour

	UnknownCountry = "Unknown"
)

var (
	// NoDataCondition replaces a missing weather entry in a fresh response.
	NoDataCondition = Condition{Main: "Unknown", Description: "No data available", Icon: defaultIcon}
	// UnavailableCondition marks cities whose data could not be fetched.
	UnavailableCondition = Condition{Main: "Unknown", Description: "Data unavailable", Icon: defaultIcon}
)

// RoundTemp rounds half up, so -2.5 becomes -2.
func RoundTemp(t float64) int {
	return int(math.Floor(t + 0.5))
}

func synthesizedSys(country string, now time.Time) Sys {
	if country == "" {
		country = UnknownCountry
	}
	return Sys{
		Country: country,
		Sunrise: now.Add(-sunOffset).Unix(),
		Sunset:  now.Add(sunOffset).Unix(),
	}
}

// NewCity normalizes a provider response. raw is kept verbatim as RawData.
func NewCity(resp *OpenWeatherMapResponse, raw []byte, now time.Time) City {
	return newCity(resp, raw, now, nil)
}

// NewCityAt normalizes a response fetched for a geocoding candidate: the
// candidate's country and coordinates fill in sections the response lacks.
func NewCityAt(resp *OpenWeatherMapResponse, raw []byte, loc GeoLocation, now time.Time) City {
	return newCity(resp, raw, now, &loc)
}

func newCity(resp *OpenWeatherMapResponse, raw []byte, now time.Time, loc *GeoLocation) City {
	if resp == nil {
		resp = &OpenWeatherMapResponse{}
	}
	city := City{
		ID:         resp.ID,
		Name:       resp.Name,
		Country:    UnknownCountry,
		Main:       Main{Pressure: defaultPressure, Humidity: defaultHumidity},
		Weather:    NoDataCondition,
		Visibility: defaultVisibility,
		Dt:         now.Unix(),
	}
	if loc != nil {
		city.Coord = Coord{Lat: loc.Lat, Lon: loc.Lon}
		if city.Name == "" {
			city.Name = loc.Name
		}
	}

	fallbackCountry := ""
	if loc != nil {
		fallbackCountry = loc.Country
	}
	if resp.Sys != nil {
		city.Sys = *resp.Sys
		if resp.Sys.Country != "" {
			city.Country = resp.Sys.Country
		} else if fallbackCountry != "" {
			city.Country = fallbackCountry
		}
	} else {
		city.Sys = synthesizedSys(fallbackCountry, now)
		city.Country = city.Sys.Country
	}

	if resp.Coord != nil {
		city.Coord = *resp.Coord
	}
	if resp.Main != nil {
		city.Main = *resp.Main
		city.Temp = RoundTemp(resp.Main.Temp)
	}
	if len(resp.Weather) > 0 {
		city.Weather = resp.Weather[0]
	}
	if resp.Wind != nil {
		city.Wind = *resp.Wind
	}
	if resp.Clouds != nil {
		city.Clouds = *resp.Clouds
	}
	if resp.Visibility != nil {
		city.Visibility = *resp.Visibility
	}
	if resp.Dt != nil && *resp.Dt != 0 {
		city.Dt = *resp.Dt
	}
	if resp.Timezone != nil {
		city.Timezone = *resp.Timezone
	}
	if len(raw) > 0 {
		city.RawData = append(json.RawMessage(nil), raw...)
	}
	return city
}

// NewCityFromRaw decodes and normalizes a stored provider response.
func NewCityFromRaw(raw []byte, now time.Time) (City, error) {
	var resp OpenWeatherMapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return City{}, err
	}
	return NewCity(&resp, raw, now), nil
}

// PlaceholderCity stands in for a city whose first fetch failed.
func PlaceholderCity(id CityID, name string, now time.Time) City {
	city := City{
		ID:         id,
		Name:       name,
		Country:    UnknownCountry,
		Main:       Main{Pressure: defaultPressure, Humidity: defaultHumidity},
		Weather:    UnavailableCondition,
		Visibility: defaultVisibility,
		Dt:         now.Unix(),
		Sys:        synthesizedSys(UnknownCountry, now),
	}
	return city
}

// FallbackCity synthesizes a displayable record from whatever the prior
// record knows when neither fresh nor raw data is available.
func FallbackCity(prior City, now time.Time) City {
	city := prior.Clone()
	temp := float64(prior.Temp)

	if prior.Main.Pressure == 0 && prior.Main.Humidity == 0 {
		city.Main = Main{
			Temp:      temp,
			FeelsLike: temp - 2,
			TempMin:   temp - 3,
			TempMax:   temp + 3,
			Pressure:  defaultPressure,
			Humidity:  defaultHumidity,
		}
	}
	if prior.Weather == (Condition{}) {
		city.Weather = UnavailableCondition
	}
	if prior.Wind.Speed == 0 && prior.Wind.Deg == 0 && prior.Wind.Gust == nil {
		city.Wind = Wind{Speed: 5, Deg: 180}
	}
	if prior.Clouds.All == 0 {
		city.Clouds = Clouds{All: 40}
	}
	if prior.Visibility == 0 {
		city.Visibility = defaultVisibility
	}
	if prior.Sys.Sunrise == 0 && prior.Sys.Sunset == 0 {
		city.Sys = synthesizedSys(prior.Country, now)
	}
	if city.Country == "" {
		city.Country = city.Sys.Country
	}
	if city.Dt == 0 {
		city.Dt = now.Unix()
	}
	return city
}

// ApplyDefaults fills sections missing from records written by older versions,
// such as placeholders stored without main, sys or weather data.
func (c *City) ApplyDefaults(now time.Time) {
	if c.Main.Pressure == 0 && c.Main.Humidity == 0 {
		t := float64(c.Temp)
		c.Main = Main{Temp: t, FeelsLike: t, TempMin: t, TempMax: t, Pressure: defaultPressure, Humidity: defaultHumidity}
	}
	if c.Weather == (Condition{}) {
		c.Weather = NoDataCondition
	}
	if c.Weather.Icon == "" {
		c.Weather.Icon = defaultIcon
	}
	if c.Sys.Sunrise == 0 && c.Sys.Sunset == 0 {
		c.Sys = synthesizedSys(firstNonEmpty(c.Sys.Country, c.Country), now)
	}
	if c.Country == "" {
		c.Country = firstNonEmpty(c.Sys.Country, UnknownCountry)
	}
	if c.Visibility == 0 {
		c.Visibility = defaultVisibility
	}
	if c.Dt == 0 {
		c.Dt = now.Unix()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
