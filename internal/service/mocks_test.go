package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	redisv9 "github.com/redis/go-redis/v9"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// mockWeatherRepository answers from in-memory tables.
type mockWeatherRepository struct {
	mu         sync.Mutex
	byKey      map[string]*model.City
	byLocation map[string]*model.City
	errs       map[string]error
	geocode    []model.GeoLocation
	geocodeErr error
	queried    []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newMockWeatherRepository() *mockWeatherRepository {
	return &mockWeatherRepository{
		byKey:      map[string]*model.City{},
		byLocation: map[string]*model.City{},
		errs:       map[string]error{},
	}
}

func (m *mockWeatherRepository) GetWeather(ctx context.Context, key model.CityKey) (*model.City, error) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if cur <= peak || m.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.queried = append(m.queried, key.String())
	if err, ok := m.errs[key.String()]; ok {
		return nil, err
	}
	if c, ok := m.byKey[key.String()]; ok {
		out := c.Clone()
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockWeatherRepository) GetWeatherAt(ctx context.Context, loc model.GeoLocation) (*model.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[loc.Name+","+loc.Country]; ok {
		return nil, err
	}
	if c, ok := m.byLocation[loc.Name+","+loc.Country]; ok {
		out := c.Clone()
		return &out, nil
	}
	return nil, repository.ErrNoData
}

func (m *mockWeatherRepository) Geocode(ctx context.Context, query string, limit int) ([]model.GeoLocation, error) {
	if m.geocodeErr != nil {
		return nil, m.geocodeErr
	}
	if limit > 0 && len(m.geocode) > limit {
		return m.geocode[:limit], nil
	}
	return m.geocode, nil
}

func (m *mockWeatherRepository) queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queried...)
}

func testCity(id model.CityID, name, country string, temp float64) model.City {
	resp := &model.OpenWeatherMapResponse{
		ID:      id,
		Name:    name,
		Main:    &model.Main{Temp: temp, Pressure: 1000, Humidity: 50},
		Weather: []model.Condition{{Main: "Clear", Description: "clear sky", Icon: "01d"}},
		Sys:     &model.Sys{Country: country, Sunrise: 1717214400, Sunset: 1717264800},
	}
	return model.NewCity(resp, nil, testNow)
}

func newTestCityStore(t *testing.T) (repository.CityRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewCityRepository(client), mr
}
