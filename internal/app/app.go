package app

import (
	"context"
	"errors"
	"sync"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/scheduler"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
)

type Page int

const (
	PageHome Page = iota
	PageDetails
)

func (p Page) String() string {
	if p == PageDetails {
		return "details"
	}
	return "home"
}

var ErrNoDetails = errors.New("no city is being viewed")

// App switches between the list page and a single details view. At most one
// details view is alive; navigating anywhere closes it first.
type App struct {
	Cities  *service.CityService
	Weather *service.WeatherService
	Notes   *service.NoteService
	Home    *HomeView

	initialCities []string
	concurrency   int
	detailsOpts   scheduler.Options

	mu      sync.Mutex
	page    Page
	details *scheduler.DetailsView
}

type Deps struct {
	Cities  *service.CityService
	Weather *service.WeatherService
	Notes   *service.NoteService
	Search  service.SearchServiceInterface
	Flash   *Flash
}

// New wires an App. The weather service resolves names against the city list.
func New(deps Deps) *App {
	if deps.Flash == nil {
		deps.Flash = NewFlash(config.GetMessageTTL())
	}
	deps.Weather.Cache = deps.Cities
	return &App{
		Cities:        deps.Cities,
		Weather:       deps.Weather,
		Notes:         deps.Notes,
		Home:          NewHomeView(deps.Cities, deps.Search, deps.Flash),
		initialCities: config.GetInitialCities(),
		concurrency:   config.GetInitialLoadConcurrency(),
		detailsOpts:   scheduler.DefaultOptions(),
	}
}

// WithDetailsOptions overrides the timer settings of future details views.
func (a *App) WithDetailsOptions(opts scheduler.Options) *App {
	a.detailsOpts = opts
	return a
}

// WithInitialCities overrides the first-run city list.
func (a *App) WithInitialCities(names []string, concurrency int) *App {
	a.initialCities = names
	a.concurrency = concurrency
	return a
}

// Load restores the city list, fetching the initial cities on first run.
func (a *App) Load(ctx context.Context) []model.City {
	return a.Cities.Load(ctx, func(ctx context.Context) []model.City {
		return a.Weather.LoadInitial(ctx, a.initialCities, a.concurrency)
	})
}

func (a *App) Page() Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

// Details returns the live details view, if any.
func (a *App) Details() (*scheduler.DetailsView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page != PageDetails || a.details == nil {
		return nil, ErrNoDetails
	}
	return a.details, nil
}

// ShowDetails closes any current view and opens one for key.
func (a *App) ShowDetails(ctx context.Context, key model.CityKey) (*scheduler.DetailsView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeDetailsLocked()

	var viewID string
	opts := a.detailsOpts
	opts.OnRedirect = func() { a.redirectHome(&viewID) }

	view, err := scheduler.Open(ctx, key, scheduler.Deps{
		Weather: a.Weather,
		Cities:  a.Cities,
		Notes:   a.Notes,
	}, opts)
	if err != nil {
		a.page = PageHome
		return nil, err
	}
	viewID = view.ID()
	a.details = view
	a.page = PageDetails
	return view, nil
}

// ShowHome closes any current details view.
func (a *App) ShowHome() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeDetailsLocked()
	a.page = PageHome
}

// redirectHome leaves the details page only if the view that asked is still
// the one shown. viewID is written under a.mu once the view is open.
func (a *App) redirectHome(viewID *string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.details == nil || a.details.ID() != *viewID {
		return
	}
	config.GetLogger().Infow("Redirecting to home after failed load", "view", *viewID)
	a.closeDetailsLocked()
	a.page = PageHome
}

func (a *App) closeDetailsLocked() {
	if a.details != nil {
		a.details.Close()
		a.details = nil
	}
}

// Close stops the live details view.
func (a *App) Close() {
	a.ShowHome()
}
