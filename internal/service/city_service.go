package service

import (
	"context"
	"strings"
	"sync"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
)

// InitialLoader produces the list used when nothing usable is stored.
type InitialLoader func(ctx context.Context) []model.City

// CityService owns the canonical city list. Every mutation writes the whole
// list back to the store while holding the lock, so store writes land in
// mutation order.
type CityService struct {
	CityRepo repository.CityRepository

	mu     sync.RWMutex
	cities []model.City
}

func NewCityService(repo ...repository.CityRepository) *CityService {
	var cityRepo repository.CityRepository
	if len(repo) > 0 && repo[0] != nil {
		cityRepo = repo[0]
	} else {
		cityRepo = repository.NewCityRepository()
	}
	return &CityService{CityRepo: cityRepo}
}

// Load restores the stored list. On first run, or when the stored value cannot
// be read, the list comes from initial and is persisted.
func (s *CityService) Load(ctx context.Context, initial InitialLoader) []model.City {
	stored, found, err := s.CityRepo.LoadCities(ctx)
	if err != nil {
		config.GetLogger().Errorw("Stored cities unusable, loading initial list", "error", err)
	}
	if err == nil && found {
		s.mu.Lock()
		s.cities = stored
		s.mu.Unlock()
		config.GetLogger().Infow("Cities restored from store", "count", len(stored))
		return s.List()
	}

	var cities []model.City
	if initial != nil {
		cities = initial(ctx)
	}
	s.Replace(ctx, cities)
	return s.List()
}

// List returns a copy of the canonical list in insertion order.
func (s *CityService) List() []model.City {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := model.CloneCities(s.cities)
	if out == nil {
		out = []model.City{}
	}
	return out
}

func (s *CityService) Find(key model.CityKey) (model.City, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(key); i >= 0 {
		return s.cities[i].Clone(), true
	}
	return model.City{}, false
}

// FindByName matches names case-insensitively regardless of id.
func (s *CityService) FindByName(name string) (model.City, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.City{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cities {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return c.Clone(), true
		}
	}
	return model.City{}, false
}

// Upsert replaces the entry sharing city's identity in place, or appends it.
func (s *CityService) Upsert(ctx context.Context, city model.City) {
	s.UpsertAs(ctx, city.Key(), city)
}

// UpsertAs replaces the entry addressed by prev with city. A fetch may resolve
// a name-keyed entry to a provider id; the entry keeps its position unless the
// id is already present, in which case that entry is updated instead.
func (s *CityService) UpsertAs(ctx context.Context, prev model.CityKey, city model.City) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(city.Key())
	if i < 0 && !prev.IsZero() {
		i = s.indexOf(prev)
	}
	if i >= 0 {
		s.cities[i] = city.Clone()
	} else {
		s.cities = append(s.cities, city.Clone())
	}
	s.persistLocked(ctx)
}

// Remove deletes every entry addressed by key. Removing an absent city is a no-op.
func (s *CityService) Remove(ctx context.Context, key model.CityKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cities[:0:0]
	for _, c := range s.cities {
		if !c.Matches(key) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(s.cities) {
		return
	}
	s.cities = kept
	s.persistLocked(ctx)
}

// ToggleFavorite flips the favorite flag and returns the updated city.
func (s *CityService) ToggleFavorite(ctx context.Context, key model.CityKey) (model.City, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(key)
	if i < 0 {
		return model.City{}, false
	}
	s.cities[i].IsFavorite = !s.cities[i].IsFavorite
	s.persistLocked(ctx)
	return s.cities[i].Clone(), true
}

// AddToFavorites marks a listed city as favorite, or appends city as a new
// favorite when it is not listed yet.
func (s *CityService) AddToFavorites(ctx context.Context, city model.City) model.City {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(city.Key()); i >= 0 {
		s.cities[i].IsFavorite = true
		s.persistLocked(ctx)
		return s.cities[i].Clone()
	}
	added := city.Clone()
	added.IsFavorite = true
	s.cities = append(s.cities, added)
	s.persistLocked(ctx)
	return added.Clone()
}

// Replace swaps the whole list.
func (s *CityService) Replace(ctx context.Context, cities []model.City) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cities = model.CloneCities(cities)
	s.persistLocked(ctx)
}

func (s *CityService) indexOf(key model.CityKey) int {
	for i, c := range s.cities {
		if c.Matches(key) {
			return i
		}
	}
	return -1
}

// persistLocked writes the list. Store failures are logged; the in-memory
// list stays authoritative for the session.
func (s *CityService) persistLocked(ctx context.Context) {
	if err := s.CityRepo.SaveCities(ctx, s.cities); err != nil {
		config.GetLogger().Errorw("Failed to persist cities", "count", len(s.cities), "error", err)
	}
}
