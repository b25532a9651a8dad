package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/app"
	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/handler"
	"github.com/fakhrymubarak/weather-tracker/internal/middleware"
	"github.com/fakhrymubarak/weather-tracker/internal/redis"
	"github.com/fakhrymubarak/weather-tracker/internal/repository"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
)

const shutdownTimeout = 10 * time.Second

// newApp wires the tracker against the configured provider and store.
func newApp() *app.App {
	weatherRepo := repository.NewWeatherRepository()
	cityRepo := repository.NewCityRepository()
	return app.New(app.Deps{
		Cities:  service.NewCityService(cityRepo),
		Weather: service.NewWeatherService(weatherRepo),
		Notes:   service.NewNoteService(cityRepo),
		Search:  service.NewSearchService(weatherRepo),
	})
}

func newRouter(a *app.App, limiter *middleware.RateLimiter) *http.ServeMux {
	mux := http.NewServeMux()
	handler.NewTrackerHandler(a).Register(mux, limiter.Middleware)
	return mux
}

func newServer(h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + config.GetServerPort(),
		Handler:           h,
		ReadHeaderTimeout: config.GetServerTimeoutDuration("read_header_timeout"),
		ReadTimeout:       config.GetServerTimeoutDuration("read_timeout"),
		WriteTimeout:      config.GetServerTimeoutDuration("write_timeout"),
		IdleTimeout:       config.GetServerTimeoutDuration("idle_timeout"),
	}
}

func main() {
	logger := config.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.GetOpenWeatherMapAPIKey() == "" {
		logger.Fatalw("OPENWEATHERMAP_API_KEY is not set")
	}
	if err := redis.Ping(ctx, redis.GetClient()); err != nil {
		logger.Warnw("City store unavailable, changes will not survive a restart", "error", err)
	}
	defer func() { _ = redis.Close() }()

	tracker := newApp()
	defer tracker.Close()
	cities := tracker.Load(ctx)
	logger.Infow("City list ready", "count", len(cities))

	limiter := middleware.NewRateLimiter(middleware.DefaultParamKey)
	limiter.StartCleanup(ctx)

	srv := newServer(newRouter(tracker, limiter))
	serverErr := make(chan error, 1)
	go func() {
		logger.Infow("Starting weather tracker", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Errorw("Server failed", "error", err)
	case <-ctx.Done():
		logger.Infow("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("Graceful shutdown failed", "error", err)
	}
}
