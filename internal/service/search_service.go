package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"golang.org/x/sync/errgroup"
)

const defaultSearchLimit = 5

// SearchError is a whole-search failure. Its message is shown to the user.
type SearchError struct {
	Kind  error
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	switch {
	case errors.Is(e.Kind, repository.ErrNotFound):
		return fmt.Sprintf("No cities matching %q found", e.Query)
	case errors.Is(e.Kind, repository.ErrNoData):
		return fmt.Sprintf("No weather data available for %q.", e.Query)
	default:
		return fmt.Sprintf("Search for %q failed.", e.Query)
	}
}

func (e *SearchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage converts an error into text fit for the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var searchErr *SearchError
	if errors.As(err, &searchErr) {
		return searchErr.Error()
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "City not found. Please return to the home page and try again."
	case errors.Is(err, repository.ErrAPIKeyMissing):
		return "Weather provider is not configured."
	default:
		return "Failed to load weather data. Please try again later."
	}
}

type SearchServiceInterface interface {
	Search(ctx context.Context, query string, current []model.City) ([]model.City, error)
}

type SearchService struct {
	WeatherRepo repository.WeatherRepository
	Limit       int
}

func NewSearchService(repo repository.WeatherRepository) *SearchService {
	return &SearchService{
		WeatherRepo: repo,
		Limit:       config.GetSearchLimit(),
	}
}

// Search resolves free text into cities. Cached names are preferred over the
// provider; provider candidates are fetched concurrently and the ones whose
// weather cannot be fetched are dropped. Results keep geocoding order.
func (s *SearchService) Search(ctx context.Context, query string, current []model.City) ([]model.City, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if matches := matchCached(query, current); len(matches) > 0 {
		return matches, nil
	}

	limit := s.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	candidates, err := s.WeatherRepo.Geocode(ctx, query, limit)
	if err != nil {
		config.GetLogger().Warnw("Geocoding failed", "query", query, "error", err)
		return nil, &SearchError{Kind: repository.ErrNetworkFailure, Query: query, Err: err}
	}
	if len(candidates) == 0 {
		return nil, &SearchError{Kind: repository.ErrNotFound, Query: query}
	}

	found := make([]*model.City, len(candidates))
	var g errgroup.Group
	for i, loc := range candidates {
		g.Go(func() error {
			city, err := s.WeatherRepo.GetWeatherAt(ctx, loc)
			if err != nil {
				config.GetLogger().Warnw("Failed to fetch weather for candidate", "candidate", loc.Name, "country", loc.Country, "error", err)
				return nil
			}
			found[i] = city
			return nil
		})
	}
	_ = g.Wait()

	results := make([]model.City, 0, len(found))
	for _, city := range found {
		if city != nil {
			results = append(results, *city)
		}
	}
	if len(results) == 0 {
		return nil, &SearchError{Kind: repository.ErrNoData, Query: query}
	}
	return results, nil
}

func matchCached(query string, current []model.City) []model.City {
	needle := strings.ToLower(query)
	var matches []model.City
	for _, c := range current {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, c.Clone())
		}
	}
	return matches
}
