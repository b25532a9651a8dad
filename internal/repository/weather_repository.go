package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// WeatherRepository defines the interface for weather provider access
type WeatherRepository interface {
	// GetWeather queries current weather by id, or by name for name keys.
	GetWeather(ctx context.Context, key model.CityKey) (*model.City, error)
	// GetWeatherAt queries current weather at a geocoding candidate's coordinates.
	GetWeatherAt(ctx context.Context, loc model.GeoLocation) (*model.City, error)
	// Geocode resolves free text into at most limit candidates, in provider order.
	Geocode(ctx context.Context, query string, limit int) ([]model.GeoLocation, error)
}

// WeatherRepositoryConfig holds the endpoints and limits of the provider.
type WeatherRepositoryConfig struct {
	APIURL     string
	GeoURL     string
	Units      string
	HTTPClient *http.Client
	// Rate and Burst configure the outbound token bucket.
	Rate  float64
	Burst int
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	apiURL     string
	geoURL     string
	units      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	apiKey     func() string
	now        func() time.Time
}

// statusError carries a 5xx status through the circuit breaker.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "provider status " + strconv.Itoa(e.code)
}

type providerResponse struct {
	status int
	body   []byte
}

// NewWeatherRepository creates a repository configured from config.yaml.
func NewWeatherRepository(httpClient ...*http.Client) WeatherRepository {
	client := &http.Client{Timeout: config.GetOpenWeatherTimeout()}
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	}
	r, burst := config.GetOpenWeatherRateConfig()
	return NewWeatherRepositoryWithConfig(WeatherRepositoryConfig{
		APIURL:     config.GetOpenWeatherApiUrl(),
		GeoURL:     config.GetGeocodingApiUrl(),
		Units:      config.GetOpenWeatherUnits(),
		HTTPClient: client,
		Rate:       r,
		Burst:      burst,
	})
}

// NewWeatherRepositoryWithConfig creates a repository from explicit settings.
func NewWeatherRepositoryWithConfig(cfg WeatherRepositoryConfig) WeatherRepository {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &weatherRepository{
		apiURL:     cfg.APIURL,
		geoURL:     cfg.GeoURL,
		units:      cfg.Units,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		breaker:    newBreaker(),
		apiKey:     config.GetOpenWeatherMapAPIKey,
		now:        time.Now,
	}
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.GetLogger().Warnw("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// GetWeather retrieves current weather for an id or a name.
func (r *weatherRepository) GetWeather(ctx context.Context, key model.CityKey) (*model.City, error) {
	params := url.Values{}
	switch {
	case key.ID.IsKnown():
		params.Set("id", key.ID.String())
	case key.Name != "":
		params.Set("q", key.Name)
	default:
		return nil, fmt.Errorf("%w: empty city key", ErrNotFound)
	}
	return r.fetchCity(ctx, params, nil)
}

// GetWeatherAt retrieves current weather at a candidate's coordinates.
func (r *weatherRepository) GetWeatherAt(ctx context.Context, loc model.GeoLocation) (*model.City, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	return r.fetchCity(ctx, params, &loc)
}

func (r *weatherRepository) fetchCity(ctx context.Context, params url.Values, loc *model.GeoLocation) (*model.City, error) {
	params.Set("units", r.units)
	body, err := r.get(ctx, r.apiURL, params)
	if err != nil {
		return nil, err
	}

	var data model.OpenWeatherMapResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var city model.City
	if loc != nil {
		city = model.NewCityAt(&data, body, *loc, r.now())
	} else {
		city = model.NewCity(&data, body, r.now())
	}
	return &city, nil
}

// Geocode calls the direct geocoding endpoint.
func (r *weatherRepository) Geocode(ctx context.Context, query string, limit int) ([]model.GeoLocation, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := r.get(ctx, r.geoURL, params)
	if err != nil {
		return nil, err
	}

	var locations []model.GeoLocation
	if err := json.Unmarshal(body, &locations); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if limit > 0 && len(locations) > limit {
		locations = locations[:limit]
	}
	return locations, nil
}

// get performs one rate limited, circuit protected GET and maps failures onto
// the error taxonomy.
func (r *weatherRepository) get(ctx context.Context, base string, params url.Values) ([]byte, error) {
	apiKey := r.apiKey()
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	params.Set("appid", apiKey)

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &statusError{code: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &providerResponse{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", ErrNetworkFailure, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	resp := result.(*providerResponse)
	switch {
	case resp.status >= 200 && resp.status < 300:
		return resp.body, nil
	case resp.status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, providerMessage(resp.body))
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetworkFailure, resp.status, providerMessage(resp.body))
	}
}

func providerMessage(body []byte) string {
	var apiErr model.APIErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return "unexpected response"
}
