package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/redis"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	citiesKey  = "cities"
	notePrefix = "note-"
)

// RedisClient is the subset of the redis client the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redisv9.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd
	Del(ctx context.Context, keys ...string) *redisv9.IntCmd
}

// CityRepository persists the user's city list and per-city notes.
type CityRepository interface {
	// LoadCities returns the stored list; found is false on first run.
	LoadCities(ctx context.Context) (cities []model.City, found bool, err error)
	// SaveCities replaces the stored list as a whole.
	SaveCities(ctx context.Context, cities []model.City) error
	GetNote(ctx context.Context, key model.CityKey) (note string, found bool, err error)
	SaveNote(ctx context.Context, key model.CityKey, note string) error
	DeleteNote(ctx context.Context, key model.CityKey) error
}

type cityRepository struct {
	redisClient RedisClient
	now         func() time.Time
}

// NewCityRepository creates a store backed by the given client, or the shared one.
func NewCityRepository(client ...RedisClient) CityRepository {
	var c RedisClient
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = redis.GetClient()
	}
	return &cityRepository{
		redisClient: c,
		now:         time.Now,
	}
}

func noteKey(key model.CityKey) string {
	return notePrefix + key.String()
}

// LoadCities reads the `cities` key. Records written by older versions are
// upgraded in memory: ids given as strings are coerced, missing sections are
// defaulted and duplicate ids keep their first occurrence.
func (r *cityRepository) LoadCities(ctx context.Context) ([]model.City, bool, error) {
	val, err := r.redisClient.Get(ctx, citiesKey).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cities: %w", err)
	}

	var stored []model.City
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	now := r.now()
	cities := make([]model.City, 0, len(stored))
	for _, c := range stored {
		if c.Name == "" && !c.ID.IsKnown() {
			continue
		}
		if c.ID.IsKnown() && containsCity(cities, c) {
			continue
		}
		c.ApplyDefaults(now)
		cities = append(cities, c)
	}
	return cities, true, nil
}

func containsCity(cities []model.City, c model.City) bool {
	for _, existing := range cities {
		if model.SameCity(existing, c) {
			return true
		}
	}
	return false
}

// SaveCities writes the full list in one SET, so readers never observe a partial update.
func (r *cityRepository) SaveCities(ctx context.Context, cities []model.City) error {
	if cities == nil {
		cities = []model.City{}
	}
	b, err := json.Marshal(cities)
	if err != nil {
		return fmt.Errorf("encode cities: %w", err)
	}
	if err := r.redisClient.Set(ctx, citiesKey, b, 0).Err(); err != nil {
		return fmt.Errorf("save cities: %w", err)
	}
	return nil
}

func (r *cityRepository) GetNote(ctx context.Context, key model.CityKey) (string, bool, error) {
	val, err := r.redisClient.Get(ctx, noteKey(key)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load note %s: %w", key, err)
	}
	return val, true, nil
}

func (r *cityRepository) SaveNote(ctx context.Context, key model.CityKey, note string) error {
	if err := r.redisClient.Set(ctx, noteKey(key), note, 0).Err(); err != nil {
		return fmt.Errorf("save note %s: %w", key, err)
	}
	return nil
}

func (r *cityRepository) DeleteNote(ctx context.Context, key model.CityKey) error {
	if err := r.redisClient.Del(ctx, noteKey(key)).Err(); err != nil {
		return fmt.Errorf("delete note %s: %w", key, err)
	}
	return nil
}
