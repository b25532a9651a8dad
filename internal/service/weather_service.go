package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"golang.org/x/sync/errgroup"
)

// CachedLabel is shown instead of a timestamp when data could not be refreshed.
const CachedLabel = "Using cached data"

// placeholderIDBase offsets the ids given to cities whose first fetch failed.
const placeholderIDBase = 1000

// CityLookup resolves names against the canonical list.
type CityLookup interface {
	FindByName(name string) (model.City, bool)
}

// FetchResult is what a view shows after a refresh attempt.
type FetchResult struct {
	City model.City
	// Cached is set when City was degraded from previously known data.
	Cached bool
	// Err is the recoverable failure behind a cached result.
	Err error
}

// Label returns the "last updated" text for the result.
func (r FetchResult) Label(now time.Time) string {
	if r.Cached {
		return CachedLabel
	}
	return now.Format("15:04:05")
}

// WeatherServiceInterface is the fetcher contract used by views.
type WeatherServiceInterface interface {
	Fetch(ctx context.Context, key model.CityKey, prior *model.City) (*model.City, error)
	FetchOrDegrade(ctx context.Context, key model.CityKey, prior *model.City) FetchResult
	Degrade(prior model.City) model.City
}

type WeatherService struct {
	WeatherRepo repository.WeatherRepository
	Cache       CityLookup
	now         func() time.Time
}

func NewWeatherService(repo ...repository.WeatherRepository) *WeatherService {
	var weatherRepo repository.WeatherRepository
	if len(repo) > 0 && repo[0] != nil {
		weatherRepo = repo[0]
	} else {
		weatherRepo = repository.NewWeatherRepository()
	}
	return &WeatherService{
		WeatherRepo: weatherRepo,
		now:         time.Now,
	}
}

func (s *WeatherService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Fetch retrieves fresh weather for key. Numeric keys query by id; name keys
// query by the prior record's name, then the cached city's name, then the key
// itself. The favorite flag of the prior record is carried over.
func (s *WeatherService) Fetch(ctx context.Context, key model.CityKey, prior *model.City) (*model.City, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("%w: invalid city key", repository.ErrNotFound)
	}

	query := key
	if !key.ID.IsKnown() {
		query = model.NameKey(s.resolveName(key, prior))
	}

	city, err := s.WeatherRepo.GetWeather(ctx, query)
	if err != nil {
		config.GetLogger().Warnw("Error fetching weather data", "city", key.String(), "error", err)
		return nil, err
	}
	if prior != nil {
		city.IsFavorite = prior.IsFavorite
	}
	return city, nil
}

func (s *WeatherService) resolveName(key model.CityKey, prior *model.City) string {
	if prior != nil && prior.Name != "" {
		return prior.Name
	}
	if s.Cache != nil {
		if cached, ok := s.Cache.FindByName(key.Name); ok && cached.Name != "" {
			return cached.Name
		}
	}
	return key.Name
}

// FetchOrDegrade fetches fresh data and, on failure, falls back to what the
// prior record knows. Without a prior record the failure is returned as is.
func (s *WeatherService) FetchOrDegrade(ctx context.Context, key model.CityKey, prior *model.City) FetchResult {
	city, err := s.Fetch(ctx, key, prior)
	if err == nil {
		return FetchResult{City: *city}
	}
	if prior == nil {
		return FetchResult{Err: err}
	}
	return FetchResult{City: s.Degrade(*prior), Cached: true, Err: err}
}

// Degrade re-surfaces the last raw response when one is retained, otherwise
// synthesizes a placeholder from the prior record's fields.
func (s *WeatherService) Degrade(prior model.City) model.City {
	now := s.clock()
	if prior.HasRawData() {
		city, err := model.NewCityFromRaw(prior.RawData, now)
		if err == nil {
			city.IsFavorite = prior.IsFavorite
			if !city.ID.IsKnown() {
				city.ID = prior.ID
			}
			return city
		}
		config.GetLogger().Warnw("Stored raw data is unreadable", "city", prior.Key().String(), "error", err)
	}
	return model.FallbackCity(prior, now)
}

// LoadInitial fetches the first-run city list. At most concurrency requests are
// in flight; failed cities become placeholders so the result always has one
// entry per name, in input order.
func (s *WeatherService) LoadInitial(ctx context.Context, names []string, concurrency int) []model.City {
	cities := make([]model.City, len(names))

	g := new(errgroup.Group)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			city, err := s.WeatherRepo.GetWeather(ctx, model.NameKey(name))
			if err != nil {
				config.GetLogger().Warnw("Error fetching initial city", "city", name, "error", err)
				cities[i] = model.PlaceholderCity(model.CityID(i+placeholderIDBase), name, s.clock())
				return nil
			}
			cities[i] = *city
			return nil
		})
	}
	_ = g.Wait()

	config.GetLogger().Infow("Initial cities loaded", "count", len(cities))
	return cities
}
