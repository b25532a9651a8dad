package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"github.com/fakhrymubarak/weather-tracker/internal/scheduler"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// stubProvider knows a fixed set of cities by name and id.
type stubProvider struct {
	mu     sync.Mutex
	cities map[string]model.City
	geo    []model.GeoLocation
}

func (p *stubProvider) GetWeather(ctx context.Context, key model.CityKey) (*model.City, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.cities {
		if c.Matches(key) || (key.Name != "" && c.Name == key.Name) {
			out := c.Clone()
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (p *stubProvider) GetWeatherAt(ctx context.Context, loc model.GeoLocation) (*model.City, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cities[loc.Name]; ok {
		out := c.Clone()
		return &out, nil
	}
	return nil, repository.ErrNoData
}

func (p *stubProvider) Geocode(ctx context.Context, query string, limit int) ([]model.GeoLocation, error) {
	return p.geo, nil
}

func stubCity(id model.CityID, name string, temp float64) model.City {
	return model.NewCity(&model.OpenWeatherMapResponse{
		ID:   id,
		Name: name,
		Main: &model.Main{Temp: temp, Pressure: 1000, Humidity: 50},
		Sys:  &model.Sys{Country: "XX", Sunrise: 1, Sunset: 2},
	}, nil, time.Now())
}

type AppTestSuite struct {
	suite.Suite
	mr       *miniredis.Miniredis
	client   *redisv9.Client
	provider *stubProvider
	app      *App
}

func (s *AppTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redisv9.NewClient(&redisv9.Options{Addr: s.mr.Addr()})
	store := repository.NewCityRepository(s.client)

	s.provider = &stubProvider{cities: map[string]model.City{
		"London": stubCity(2643743, "London", 15),
		"Tokyo":  stubCity(1850147, "Tokyo", 25),
		"Dublin": stubCity(2964574, "Dublin", 12),
	}}

	weather := service.NewWeatherService(s.provider)
	s.app = New(Deps{
		Cities:  service.NewCityService(store),
		Weather: weather,
		Notes:   service.NewNoteService(store),
		Search:  &service.SearchService{WeatherRepo: s.provider, Limit: 5},
		Flash:   NewFlash(30 * time.Millisecond),
	}).WithInitialCities([]string{"London", "Atlantis", "Tokyo"}, 2).
		WithDetailsOptions(scheduler.Options{
			RefreshInterval:  time.Hour,
			CountdownSeconds: 180,
			SettleDelay:      time.Hour,
			RedirectDelay:    20 * time.Millisecond,
			StopTimeout:      100 * time.Millisecond,
		})
}

func (s *AppTestSuite) TearDownTest() {
	s.app.Close()
	_ = s.client.Close()
}

func (s *AppTestSuite) TestLoad_FirstRunUsesInitialCities() {
	cities := s.app.Load(context.Background())

	s.Require().Len(cities, 3)
	s.Equal("London", cities[0].Name)
	s.Equal(model.CityID(1001), cities[1].ID)
	s.Equal("Atlantis", cities[1].Name)
	s.True(s.mr.Exists("cities"))

	// A second load reads the store instead of the provider.
	s.provider.mu.Lock()
	s.provider.cities = nil
	s.provider.mu.Unlock()
	again := s.app.Load(context.Background())
	s.Len(again, 3)
	s.Equal(15, again[0].Temp)
}

func (s *AppTestSuite) TestNavigation_ClosesPreviousView() {
	s.app.Load(context.Background())

	first, err := s.app.ShowDetails(context.Background(), model.IDKey(2643743))
	s.Require().NoError(err)
	s.Equal(PageDetails, s.app.Page())

	second, err := s.app.ShowDetails(context.Background(), model.IDKey(1850147))
	s.Require().NoError(err)
	s.Equal(scheduler.StateClosed, first.State())
	s.Equal(scheduler.StateReady, second.State())

	current, err := s.app.Details()
	s.Require().NoError(err)
	s.Equal(second.ID(), current.ID())

	s.app.ShowHome()
	s.Equal(PageHome, s.app.Page())
	s.Equal(scheduler.StateClosed, second.State())
	_, err = s.app.Details()
	s.ErrorIs(err, ErrNoDetails)
}

func (s *AppTestSuite) TestFailedDetailsRedirectsHome() {
	s.app.Load(context.Background())

	view, err := s.app.ShowDetails(context.Background(), model.IDKey(999))
	s.Require().NoError(err)

	s.Eventually(func() bool { return s.app.Page() == PageHome }, time.Second, 5*time.Millisecond)
	s.Equal(scheduler.StateClosed, view.State())
}

func (s *AppTestSuite) TestStaleRedirectDoesNotLeaveNewView() {
	s.app.Load(context.Background())

	_, err := s.app.ShowDetails(context.Background(), model.IDKey(999))
	s.Require().NoError(err)
	fresh, err := s.app.ShowDetails(context.Background(), model.IDKey(2643743))
	s.Require().NoError(err)

	time.Sleep(60 * time.Millisecond)
	s.Equal(PageDetails, s.app.Page())
	s.Equal(scheduler.StateReady, fresh.State())
}

func (s *AppTestSuite) TestDetailsOfUnlistedCityAddsIt() {
	s.app.Load(context.Background())

	view, err := s.app.ShowDetails(context.Background(), model.IDKey(2964574))
	s.Require().NoError(err)

	s.Eventually(func() bool { return view.State() == scheduler.StateReady }, time.Second, 5*time.Millisecond)
	_, ok := s.app.Cities.Find(model.IDKey(2964574))
	s.True(ok)
}

func (s *AppTestSuite) TestSearchAndAddToFavorites() {
	s.app.Load(context.Background())
	s.provider.geo = []model.GeoLocation{{Name: "Dublin", Country: "IE"}}

	results, err := s.app.Home.Search(context.Background(), "dub")
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("dub", s.app.Home.Snapshot().SearchTerm)

	added, err := s.app.Home.AddToFavorites(context.Background(), results[0].Key())
	s.Require().NoError(err)
	s.True(added.IsFavorite)

	snap := s.app.Home.Snapshot()
	s.Empty(snap.Results)
	s.Empty(snap.SearchTerm)
	s.Require().Len(snap.Cities, 4)
	s.Equal("Dublin", snap.Cities[0].Name, "favorites come first")
}

func (s *AppTestSuite) TestSearchFailureFlashesMessage() {
	s.app.Load(context.Background())

	_, err := s.app.Home.Search(context.Background(), "Xyzzy")
	s.Require().Error(err)
	s.Equal(`No cities matching "Xyzzy" found`, s.app.Home.Snapshot().Message)

	s.Eventually(func() bool { return s.app.Home.Snapshot().Message == "" }, time.Second, 5*time.Millisecond)
}

func (s *AppTestSuite) TestAddToFavoritesUnknownCity() {
	s.app.Load(context.Background())

	_, err := s.app.Home.AddToFavorites(context.Background(), model.IDKey(123))
	s.ErrorIs(err, ErrNotInResults)
}

// gatedSearch holds searches for terms in hold until release is closed.
type gatedSearch struct {
	hold    map[string]bool
	started chan string
	release chan struct{}
}

func (g *gatedSearch) Search(ctx context.Context, query string, current []model.City) ([]model.City, error) {
	if g.hold[query] {
		g.started <- query
		<-g.release
	}
	return []model.City{stubCity(1, query, 10)}, nil
}

func (s *AppTestSuite) TestSearch_SupersededResultsAreDropped() {
	gate := &gatedSearch{
		hold:    map[string]bool{"Par": true},
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	home := NewHomeView(s.app.Cities, gate, NewFlash(time.Second))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := home.Search(context.Background(), "Par")
		s.NoError(err)
		s.Len(results, 1)
	}()
	s.Equal("Par", <-gate.started)

	_, err := home.Search(context.Background(), "Paris")
	s.Require().NoError(err)
	close(gate.release)
	wg.Wait()

	snap := home.Snapshot()
	s.Equal("Paris", snap.SearchTerm)
	s.Require().Len(snap.Results, 1)
	s.Equal("Paris", snap.Results[0].Name)
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}

func TestPage_String(t *testing.T) {
	assert.Equal(t, "home", PageHome.String())
	assert.Equal(t, "details", PageDetails.String())
}

func TestFlash(t *testing.T) {
	f := NewFlash(30 * time.Millisecond)
	assert.Empty(t, f.Message())

	f.Show("first")
	assert.Equal(t, "first", f.Message())
	time.Sleep(20 * time.Millisecond)
	f.Show("second")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "second", f.Message(), "a new message restarts the timer")

	require.Eventually(t, func() bool { return f.Message() == "" }, time.Second, 5*time.Millisecond)

	f.Show("third")
	f.Clear()
	assert.Empty(t, f.Message())
}
