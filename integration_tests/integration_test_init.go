package integrationtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakhrymubarak/weather-tracker/internal/app"
	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/handler"
	"github.com/fakhrymubarak/weather-tracker/internal/middleware"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
)

const testAPIKey = "test_api_key"

var (
	miniRedisMock *miniredis.Miniredis
)

func createMockRedisServer() {
	miniRedisMock = miniredis.NewMiniRedis()
	if err := miniRedisMock.StartAddr(config.GetTestRedisMockPort()); err != nil {
		panic(err)
	}
}

// weatherBody renders a current weather payload.
func weatherBody(id int, name, country string, temp float64) string {
	return fmt.Sprintf(`{"id":%d,"name":%q,"coord":{"lat":1,"lon":2},"main":{"temp":%g,"feels_like":%g,"temp_min":%g,"temp_max":%g,"pressure":1012,"humidity":60},"weather":[{"main":"Clouds","description":"scattered clouds","icon":"03d"}],"wind":{"speed":4.1,"deg":250},"clouds":{"all":40},"visibility":10000,"dt":1717243200,"sys":{"country":%q,"sunrise":1717214400,"sunset":1717264800},"timezone":3600}`,
		id, name, temp, temp, temp-1, temp+1, country)
}

var springfields = []struct {
	country string
	lat     string
	fails   bool
}{
	{"US", "39.8", false},
	{"AU", "-27.7", true},
	{"CA", "49.9", false},
	{"NZ", "-43.7", true},
	{"ZA", "-33.9", false},
}

// createMockProviderServer serves the current weather and geocoding endpoints.
func createMockProviderServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if q.Get("appid") != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
			return
		}
		switch {
		case q.Get("id") == "2643743" || strings.EqualFold(q.Get("q"), "London"):
			_, _ = w.Write([]byte(weatherBody(2643743, "London", "GB", 14.6)))
		case q.Get("id") == "1850147" || strings.EqualFold(q.Get("q"), "Tokyo"):
			_, _ = w.Write([]byte(weatherBody(1850147, "Tokyo", "JP", 24.2)))
		case q.Get("id") == "5128581":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"cod":500,"message":"internal error"}`))
		case q.Get("lat") != "":
			for i, s := range springfields {
				if q.Get("lat") != s.lat {
					continue
				}
				if s.fails {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(weatherBody(4250542+i, "Springfield", s.country, 20)))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
		}
	})
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.EqualFold(r.URL.Query().Get("q"), "Springfield") {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		type loc struct {
			Name    string  `json:"name"`
			Lat     float64 `json:"lat"`
			Lon     float64 `json:"lon"`
			Country string  `json:"country"`
		}
		var locs []loc
		for _, s := range springfields {
			var lat float64
			_, _ = fmt.Sscanf(s.lat, "%g", &lat)
			locs = append(locs, loc{Name: "Springfield", Lat: lat, Lon: 1, Country: s.country})
		}
		_ = json.NewEncoder(w).Encode(locs)
	})
	return httptest.NewServer(mux)
}

// setupIntegrationTestServer wires the full stack against the configured
// provider and store, loads the city list and serves the routes.
func setupIntegrationTestServer() (*httptest.Server, *app.App) {
	weatherRepo := repository.NewWeatherRepository()
	cityRepo := repository.NewCityRepository()

	tracker := app.New(app.Deps{
		Cities:  service.NewCityService(cityRepo),
		Weather: service.NewWeatherService(weatherRepo),
		Notes:   service.NewNoteService(cityRepo),
		Search:  service.NewSearchService(weatherRepo),
	})

	mux := http.NewServeMux()
	handler.NewTrackerHandler(tracker).Register(mux, middleware.NewRateLimiter(middleware.DefaultParamKey).Middleware)
	return httptest.NewServer(mux), tracker
}
