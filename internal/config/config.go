package config

import (
	"flag"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func initConfig() {
	once.Do(func() {
		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
		}
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Errorw("Error reading config file", "error", err)
		}

		if !isTestRun() {
			return
		}

		viper.SetConfigName("config_test")
		if err = viper.MergeInConfig(); err != nil {
			GetLogger().Errorw("Error reading test config file", "error", err)
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// getDuration reads a duration key, falling back to def when unset or unparsable.
func getDuration(key string, def time.Duration) time.Duration {
	initConfig()
	durStr := viper.GetString(key)
	if durStr == "" {
		return def
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil || dur <= 0 {
		return def
	}
	return dur
}

func getIntOrDefault(key string, def int) int {
	initConfig()
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return def
}

func GetOpenWeatherApiUrl() string {
	initConfig()
	return viper.GetString("openweathermap.api_url")
}

func GetGeocodingApiUrl() string {
	initConfig()
	return viper.GetString("openweathermap.geo_url")
}

func GetOpenWeatherMapAPIKey() string {
	_ = godotenv.Load()
	return os.Getenv("OPENWEATHERMAP_API_KEY")
}

// GetOpenWeatherUnits returns the unit system sent to the provider. Defaults to metric.
func GetOpenWeatherUnits() string {
	initConfig()
	if units := viper.GetString("openweathermap.units"); units != "" {
		return units
	}
	return "metric"
}

// GetOpenWeatherTimeout returns the outbound HTTP timeout. Defaults to 10s.
func GetOpenWeatherTimeout() time.Duration {
	return getDuration("openweathermap.timeout", 10*time.Second)
}

// GetOpenWeatherRateConfig returns the outbound token bucket settings (requests per second, burst).
func GetOpenWeatherRateConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("openweathermap.rate")
	if rate == 0 {
		rate = 10
	}
	burst = getIntOrDefault("openweathermap.burst", 10)
	return
}

func GetRedisAddr() string {
	initConfig()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return viper.GetString("redis.addr")
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	return serverPort
}

// GetServerTimeoutDuration parses a server timeout key, defaulting to 15s.
func GetServerTimeoutDuration(key string) time.Duration {
	return getDuration("server."+key, 15*time.Second)
}

// GetRefreshInterval is the period of the details view auto refresh. Defaults to 3m.
func GetRefreshInterval() time.Duration {
	return getDuration("tracker.refresh_interval", 3*time.Minute)
}

// GetCountdownSeconds is the value the details countdown resets to. Defaults to 180.
func GetCountdownSeconds() int {
	return getIntOrDefault("tracker.countdown_seconds", 180)
}

// GetSettleDelay is the pause between showing a cached city and refetching it.
func GetSettleDelay() time.Duration {
	return getDuration("tracker.settle_delay", 100*time.Millisecond)
}

// GetRedirectDelay is how long a failed details view waits before returning home.
func GetRedirectDelay() time.Duration {
	return getDuration("tracker.redirect_delay", 3*time.Second)
}

// GetMessageTTL is how long a user-facing error message stays visible.
func GetMessageTTL() time.Duration {
	return getDuration("tracker.message_ttl", 3*time.Second)
}

// GetSearchLimit caps the number of geocoding candidates. Defaults to 5.
func GetSearchLimit() int {
	return getIntOrDefault("tracker.search_limit", 5)
}

// GetInitialLoadConcurrency caps concurrent requests of the first-run bulk load.
func GetInitialLoadConcurrency() int {
	return getIntOrDefault("tracker.initial_load_concurrency", 5)
}

// GetInitialCities returns the city names fetched on first run.
func GetInitialCities() []string {
	initConfig()
	return viper.GetStringSlice("tracker.initial_cities")
}

func GetTestRedisMockPort() string {
	initConfig()
	return viper.GetString("test.redis_mock_port")
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	return getDuration("rate_limiter.cleanup_timeout", 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns the rate and burst for the global rate limiter from config.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 10
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 10
	}
	return
}

// GetParamRateLimiterConfig returns the rate and burst for the param rate limiter from config.
func GetParamRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.param.rate")
	if rate == 0 {
		rate = 2
	}
	burst = viper.GetInt("rate_limiter.param.burst")
	if burst == 0 {
		burst = 2
	}
	return
}
