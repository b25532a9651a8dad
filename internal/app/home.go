package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
)

var ErrNotInResults = errors.New("city is not in the search results")

// HomeView is the list page: the ordered city list plus a pending search.
type HomeView struct {
	cities *service.CityService
	search service.SearchServiceInterface
	flash  *Flash

	mu      sync.Mutex
	gen     uint64
	term    string
	results []model.City
}

func NewHomeView(cities *service.CityService, search service.SearchServiceInterface, flash *Flash) *HomeView {
	return &HomeView{cities: cities, search: search, flash: flash}
}

// HomeSnapshot is the renderable state of the list page.
type HomeSnapshot struct {
	Cities     []model.City `json:"cities"`
	SearchTerm string       `json:"searchTerm,omitempty"`
	Results    []model.City `json:"results,omitempty"`
	Message    string       `json:"message,omitempty"`
}

// Search runs a search against the current list. Failures are shown through
// the flash message and leave no results. A search superseded by a later one
// still returns its outcome but leaves the pending search untouched.
func (h *HomeView) Search(ctx context.Context, term string) ([]model.City, error) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	results, err := h.search.Search(ctx, term, h.cities.List())

	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen {
		config.GetLogger().Debugw("Dropping superseded search", "query", term)
		return results, err
	}
	h.term = term
	if err != nil {
		h.results = nil
		h.flash.Show(service.UserMessage(err))
		config.GetLogger().Infow("Search failed", "query", term, "error", err)
		return nil, err
	}
	h.results = model.CloneCities(results)
	return results, nil
}

// AddToFavorites adds a search result, or a listed city, as a favorite and
// clears the pending search.
func (h *HomeView) AddToFavorites(ctx context.Context, key model.CityKey) (model.City, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	city, ok := findCity(h.results, key)
	if !ok {
		city, ok = h.cities.Find(key)
	}
	if !ok {
		return model.City{}, ErrNotInResults
	}
	added := h.cities.AddToFavorites(ctx, city)
	h.gen++
	h.results = nil
	h.term = ""
	return added, nil
}

func (h *HomeView) ToggleFavorite(ctx context.Context, key model.CityKey) (model.City, bool) {
	return h.cities.ToggleFavorite(ctx, key)
}

func (h *HomeView) Remove(ctx context.Context, key model.CityKey) {
	h.cities.Remove(ctx, key)
}

func (h *HomeView) ClearSearch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	h.results = nil
	h.term = ""
}

func (h *HomeView) Snapshot() HomeSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HomeSnapshot{
		Cities:     service.PresentationOrder(h.cities.List()),
		SearchTerm: h.term,
		Results:    model.CloneCities(h.results),
		Message:    h.flash.Message(),
	}
}

func findCity(cities []model.City, key model.CityKey) (model.City, bool) {
	for _, c := range cities {
		if c.Matches(key) {
			return c.Clone(), true
		}
	}
	// Search results may lack an id; fall back to their name.
	if !key.ID.IsKnown() {
		for _, c := range cities {
			if strings.EqualFold(c.Name, key.Name) {
				return c.Clone(), true
			}
		}
	}
	return model.City{}, false
}
