package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakhrymubarak/weather-tracker/internal/app"
	"github.com/fakhrymubarak/weather-tracker/internal/middleware"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"github.com/fakhrymubarak/weather-tracker/internal/scheduler"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type mockWeatherRepository struct {
	cities []model.City
	geo    map[string][]model.GeoLocation
}

func (m *mockWeatherRepository) GetWeather(ctx context.Context, key model.CityKey) (*model.City, error) {
	for _, c := range m.cities {
		if c.Matches(key) || c.Name == key.Name {
			out := c.Clone()
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockWeatherRepository) GetWeatherAt(ctx context.Context, loc model.GeoLocation) (*model.City, error) {
	for _, c := range m.cities {
		if c.Name == loc.Name && c.Country == loc.Country {
			out := c.Clone()
			return &out, nil
		}
	}
	return nil, repository.ErrNoData
}

func (m *mockWeatherRepository) Geocode(ctx context.Context, query string, limit int) ([]model.GeoLocation, error) {
	return m.geo[strings.ToLower(query)], nil
}

func handlerCity(id model.CityID, name, country string) model.City {
	return model.NewCity(&model.OpenWeatherMapResponse{
		ID:   id,
		Name: name,
		Main: &model.Main{Temp: 20, Pressure: 1000, Humidity: 50},
		Sys:  &model.Sys{Country: country, Sunrise: 1, Sunset: 2},
	}, nil, time.Now())
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Message string          `json:"message"`
}

type TrackerHandlerTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redisv9.Client
	app    *app.App
	mux    *http.ServeMux
}

func (s *TrackerHandlerTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redisv9.NewClient(&redisv9.Options{Addr: s.mr.Addr()})
	store := repository.NewCityRepository(s.client)

	provider := &mockWeatherRepository{
		cities: []model.City{
			handlerCity(2643743, "London", "GB"),
			handlerCity(1850147, "Tokyo", "JP"),
			handlerCity(4250542, "Springfield", "US"),
		},
		geo: map[string][]model.GeoLocation{
			"spring": {{Name: "Springfield", Country: "US"}},
		},
	}
	s.app = app.New(app.Deps{
		Cities:  service.NewCityService(store),
		Weather: service.NewWeatherService(provider),
		Notes:   service.NewNoteService(store),
		Search:  &service.SearchService{WeatherRepo: provider, Limit: 5},
	}).WithInitialCities([]string{"London", "Tokyo"}, 2).
		WithDetailsOptions(scheduler.Options{
			RefreshInterval:  time.Hour,
			CountdownSeconds: 180,
			SettleDelay:      time.Hour,
			RedirectDelay:    time.Hour,
			StopTimeout:      100 * time.Millisecond,
		})
	s.app.Load(context.Background())

	s.mux = http.NewServeMux()
	limiter := middleware.NewRateLimiter(middleware.DefaultParamKey)
	NewTrackerHandler(s.app).Register(s.mux, limiter.Middleware)
}

func (s *TrackerHandlerTestSuite) TearDownTest() {
	s.app.Close()
	_ = s.client.Close()
}

func (s *TrackerHandlerTestSuite) do(method, target, body string) (int, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	var env envelope
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&env), rr.Body.String())
	return rr.Code, env
}

func (s *TrackerHandlerTestSuite) TestHealth() {
	code, env := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"ok","page":"home"}`, string(env.Data))
}

func (s *TrackerHandlerTestSuite) TestCities() {
	code, env := s.do(http.MethodGet, "/cities", "")
	s.Equal(http.StatusOK, code)
	s.Equal("Success", env.Message)

	var snap app.HomeSnapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Require().Len(snap.Cities, 2)
	s.Equal("London", snap.Cities[0].Name)
}

func (s *TrackerHandlerTestSuite) TestSearchAndAddToFavorites() {
	code, env := s.do(http.MethodGet, "/search?query=spring", "")
	s.Require().Equal(http.StatusOK, code)
	var results []model.City
	s.Require().NoError(json.Unmarshal(env.Data, &results))
	s.Require().Len(results, 1)

	code, env = s.do(http.MethodPost, "/favorites/4250542", "")
	s.Require().Equal(http.StatusOK, code)
	var added model.City
	s.Require().NoError(json.Unmarshal(env.Data, &added))
	s.True(added.IsFavorite)

	_, env = s.do(http.MethodGet, "/cities", "")
	var snap app.HomeSnapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Equal("Springfield", snap.Cities[0].Name)
	s.Empty(snap.Results)
}

func (s *TrackerHandlerTestSuite) TestSearchBlankAndCached() {
	code, env := s.do(http.MethodGet, "/search?query=", "")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`[]`, string(env.Data))

	code, env = s.do(http.MethodGet, "/search?query=lond", "")
	s.Equal(http.StatusOK, code)
	var results []model.City
	s.Require().NoError(json.Unmarshal(env.Data, &results))
	s.Require().Len(results, 1)
	s.Equal(model.CityID(2643743), results[0].ID)
}

func (s *TrackerHandlerTestSuite) TestSearchNotFound() {
	code, env := s.do(http.MethodGet, "/search?query=Gotham", "")
	s.Equal(http.StatusNotFound, code)
	s.Require().NotNil(env.Error)
	s.Equal(`No cities matching "Gotham" found`, *env.Error)

	_, env = s.do(http.MethodGet, "/cities", "")
	var snap app.HomeSnapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Equal(`No cities matching "Gotham" found`, snap.Message)
}

func (s *TrackerHandlerTestSuite) TestAddToFavoritesUnknown() {
	code, env := s.do(http.MethodPost, "/favorites/999", "")
	s.Equal(http.StatusNotFound, code)
	s.Require().NotNil(env.Error)
}

func (s *TrackerHandlerTestSuite) TestToggleAndRemove() {
	code, env := s.do(http.MethodPost, "/cities/1850147/favorite", "")
	s.Require().Equal(http.StatusOK, code)
	var city model.City
	s.Require().NoError(json.Unmarshal(env.Data, &city))
	s.True(city.IsFavorite)

	code, _ = s.do(http.MethodPost, "/cities/999/favorite", "")
	s.Equal(http.StatusNotFound, code)

	code, env = s.do(http.MethodDelete, "/cities/1850147", "")
	s.Require().Equal(http.StatusOK, code)
	var snap app.HomeSnapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Len(snap.Cities, 1)

	code, _ = s.do(http.MethodDelete, "/cities/1850147", "")
	s.Equal(http.StatusOK, code)
}

func (s *TrackerHandlerTestSuite) TestDetailsLifecycle() {
	code, _ := s.do(http.MethodGet, "/details", "")
	s.Equal(http.StatusNotFound, code)

	code, env := s.do(http.MethodGet, "/details/2643743", "")
	s.Require().Equal(http.StatusOK, code)
	var snap scheduler.Snapshot
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.Equal("ready", snap.State)
	s.Equal("London", snap.City.Name)
	s.Equal("3:00", snap.CountdownText)

	code, env = s.do(http.MethodPost, "/details/refresh", "")
	s.Equal(http.StatusOK, code)

	code, _ = s.do(http.MethodPut, "/details/note", `{"note":"   "}`)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPut, "/details/note", `not json`)
	s.Equal(http.StatusBadRequest, code)

	code, env = s.do(http.MethodPut, "/details/note", `{"note":"Sunny walk"}`)
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.True(snap.HasNote)
	s.True(s.mr.Exists("note-2643743"))

	code, env = s.do(http.MethodPost, "/details/favorite", "")
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(env.Data, &snap))
	s.True(snap.City.IsFavorite)

	code, _ = s.do(http.MethodDelete, "/details/note", "")
	s.Equal(http.StatusOK, code)
	s.False(s.mr.Exists("note-2643743"))

	code, _ = s.do(http.MethodDelete, "/details", "")
	s.Equal(http.StatusOK, code)
	s.Equal(app.PageHome, s.app.Page())

	code, _ = s.do(http.MethodPost, "/details/refresh", "")
	s.Equal(http.StatusNotFound, code)
}

func (s *TrackerHandlerTestSuite) TestSearchRateLimited() {
	for i := 0; i < 2; i++ {
		code, _ := s.do(http.MethodGet, "/search?query=tok", "")
		s.Equal(http.StatusOK, code)
	}
	code, env := s.do(http.MethodGet, "/search?query=tok", "")
	s.Equal(http.StatusTooManyRequests, code)
	s.Equal("Too Many Requests (per-param limit)", env.Message)
}

func TestTrackerHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerHandlerTestSuite))
}
