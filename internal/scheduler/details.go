package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"github.com/fakhrymubarak/weather-tracker/internal/service"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotFoundMessage is shown when a details view cannot load its city.
const NotFoundMessage = "City not found. Please return to the home page and try again."

const tickInterval = time.Second

var (
	ErrViewClosed = errors.New("details view closed")
	ErrNotReady   = errors.New("city not loaded")
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CityStore is the part of the city list controller a details view mutates.
type CityStore interface {
	Find(key model.CityKey) (model.City, bool)
	FindByName(name string) (model.City, bool)
	UpsertAs(ctx context.Context, prev model.CityKey, city model.City)
	ToggleFavorite(ctx context.Context, key model.CityKey) (model.City, bool)
}

type Deps struct {
	Weather service.WeatherServiceInterface
	Cities  CityStore
	Notes   service.NoteServiceInterface
}

type Options struct {
	RefreshInterval  time.Duration
	CountdownSeconds int
	SettleDelay      time.Duration
	RedirectDelay    time.Duration
	// StopTimeout bounds how long Close waits for a running job.
	StopTimeout time.Duration
	// OnRedirect is called once, on its own goroutine, after a failed load.
	OnRedirect func()
}

// DefaultOptions reads the timer settings from config.
func DefaultOptions() Options {
	return Options{
		RefreshInterval:  config.GetRefreshInterval(),
		CountdownSeconds: config.GetCountdownSeconds(),
		SettleDelay:      config.GetSettleDelay(),
		RedirectDelay:    config.GetRedirectDelay(),
		StopTimeout:      2 * time.Second,
	}
}

// DetailsView is the lifetime scope of one viewed city. It owns the periodic
// refresh job, the countdown job and any one-shot settle or redirect job; Close
// stops all of them. Fetch results that complete after Close are discarded.
type DetailsView struct {
	id   uuid.UUID
	key  model.CityKey
	deps Deps
	opts Options
	log  *zap.SugaredLogger
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	sched  gocron.Scheduler

	countdown  *Countdown
	refreshing atomic.Bool

	mu          sync.RWMutex
	state       State
	city        *model.City
	lastUpdated string
	errMsg      string
	note        string
	hasNote     bool
	redirecting bool
	refreshJob  gocron.Job
}

// Open enters the details view for key. A city already in the list is shown
// at once and refetched after the settle delay; otherwise it is fetched
// directly in the background while the view is Loading.
func Open(ctx context.Context, key model.CityKey, deps Deps, opts Options) (*DetailsView, error) {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	sched, err := gocron.NewScheduler(gocron.WithStopTimeout(opts.StopTimeout))
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	vctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	v := &DetailsView{
		id:        id,
		key:       key,
		deps:      deps,
		opts:      opts,
		log:       config.GetLogger().With("view", id.String(), "city", key.String()),
		now:       time.Now,
		ctx:       vctx,
		cancel:    cancel,
		sched:     sched,
		countdown: NewCountdown(opts.CountdownSeconds),
		state:     StateLoading,
	}
	sched.Start()

	city, ok := deps.Cities.Find(key)
	if !ok && !key.ID.IsKnown() {
		city, ok = deps.Cities.FindByName(key.Name)
	}
	if ok {
		// Notes and list updates follow the listed entry's identity.
		v.key = city.Key()
		v.loadNote()
		v.mu.Lock()
		v.city = &city
		v.state = StateReady
		v.lastUpdated = v.now().Format("15:04:05")
		err = v.startTimersLocked()
		if err == nil {
			err = v.scheduleOnceLocked("settle", opts.SettleDelay, func() { v.Refresh() })
		}
		v.mu.Unlock()
		if err != nil {
			v.Close()
			return nil, err
		}
		v.log.Infow("Details view opened from list")
		return v, nil
	}

	v.loadNote()
	v.log.Infow("City not in list, loading directly")
	go v.loadDirect()
	return v, nil
}

func (v *DetailsView) ID() string {
	return v.id.String()
}

func (v *DetailsView) Key() model.CityKey {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key
}

func (v *DetailsView) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *DetailsView) loadNote() {
	if v.deps.Notes == nil {
		return
	}
	note, ok := v.deps.Notes.Get(v.ctx, v.Key())
	v.mu.Lock()
	v.note, v.hasNote = note, ok
	v.mu.Unlock()
}

func (v *DetailsView) loadDirect() {
	if !v.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer v.refreshing.Store(false)

	key := v.Key()
	city, err := v.deps.Weather.Fetch(v.ctx, key, nil)

	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		v.log.Debugw("Discarding load result of closed view")
		return
	}
	if err != nil {
		v.log.Warnw("Failed to load city", "error", err)
		v.state = StateError
		v.errMsg = NotFoundMessage
		v.redirecting = true
		if err := v.scheduleOnceLocked("redirect", v.opts.RedirectDelay, v.redirect); err != nil {
			v.log.Errorw("Failed to schedule redirect", "error", err)
		}
		v.mu.Unlock()
		return
	}

	if listed, ok := v.deps.Cities.Find(city.Key()); ok {
		city.IsFavorite = listed.IsFavorite
	}
	v.deps.Cities.UpsertAs(v.ctx, key, *city)
	rekeyed := city.Key() != key
	v.key = city.Key()
	v.city = city
	v.state = StateReady
	v.lastUpdated = v.now().Format("15:04:05")
	v.countdown.Reset()
	if err := v.startTimersLocked(); err != nil {
		v.log.Errorw("Failed to start refresh timers", "error", err)
	}
	hasNote := v.hasNote
	v.mu.Unlock()

	if rekeyed && !hasNote {
		v.loadNote()
	}
}

func (v *DetailsView) redirect() {
	if cb := v.opts.OnRedirect; cb != nil {
		// Close waits for running jobs, so the callback must not run on the job goroutine.
		go cb()
	}
}

func (v *DetailsView) startTimersLocked() error {
	job, err := v.sched.NewJob(
		gocron.DurationJob(v.opts.RefreshInterval),
		gocron.NewTask(v.autoRefresh),
		gocron.WithName("refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	v.refreshJob = job

	_, err = v.sched.NewJob(
		gocron.DurationJob(tickInterval),
		gocron.NewTask(v.tick),
		gocron.WithName("countdown"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (v *DetailsView) scheduleOnceLocked(name string, delay time.Duration, fn func()) error {
	start := gocron.OneTimeJobStartImmediately()
	if delay > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(delay))
	}
	_, err := v.sched.NewJob(gocron.OneTimeJob(start), gocron.NewTask(fn), gocron.WithName(name))
	return err
}

func (v *DetailsView) autoRefresh() {
	v.Refresh()
}

// tick advances the countdown by one second.
func (v *DetailsView) tick() {
	if v.State() != StateReady {
		return
	}
	v.countdown.Tick()
}

// Refresh fetches fresh data for the viewed city. It returns false when the
// view is not ready, another refresh is in flight, or the view was closed
// before the fetch completed. On failure the view degrades to cached data and
// the list is left unchanged. The countdown restarts after every attempt.
func (v *DetailsView) Refresh() bool {
	v.mu.RLock()
	if v.state != StateReady || v.city == nil {
		v.mu.RUnlock()
		return false
	}
	prior := v.city.Clone()
	v.mu.RUnlock()

	if !v.refreshing.CompareAndSwap(false, true) {
		v.log.Debugw("Refresh already in flight")
		return false
	}
	defer v.refreshing.Store(false)

	result := v.deps.Weather.FetchOrDegrade(v.ctx, prior.Key(), &prior)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		v.log.Debugw("Discarding refresh result of closed view")
		return false
	}
	if result.Cached {
		v.log.Warnw("Refresh failed, showing cached data", "error", result.Err)
	} else {
		v.deps.Cities.UpsertAs(v.ctx, prior.Key(), result.City)
	}
	city := result.City
	v.city = &city
	v.lastUpdated = result.Label(v.now())
	v.countdown.Reset()
	return true
}

// ManualRefresh refreshes now and restarts the periodic job, so the next
// automatic refresh is one full interval away, matching the countdown.
func (v *DetailsView) ManualRefresh() bool {
	if !v.Refresh() {
		return false
	}

	v.mu.RLock()
	job := v.refreshJob
	closed := v.state == StateClosed
	v.mu.RUnlock()
	if job == nil || closed {
		return true
	}

	updated, err := v.sched.Update(
		job.ID(),
		gocron.DurationJob(v.opts.RefreshInterval),
		gocron.NewTask(v.autoRefresh),
		gocron.WithName("refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		v.log.Warnw("Failed to restart refresh job", "error", err)
		return true
	}
	v.mu.Lock()
	v.refreshJob = updated
	v.mu.Unlock()
	return true
}

// ToggleFavorite flips the favorite flag of the viewed city in the list.
func (v *DetailsView) ToggleFavorite() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	updated, ok := v.deps.Cities.ToggleFavorite(v.ctx, v.city.Key())
	if !ok {
		// The city was removed from the list while being viewed.
		v.city.IsFavorite = !v.city.IsFavorite
		return v.city.IsFavorite, nil
	}
	v.city.IsFavorite = updated.IsFavorite
	return updated.IsFavorite, nil
}

func (v *DetailsView) SaveNote(text string) error {
	if v.State() == StateClosed {
		return ErrViewClosed
	}
	if err := v.deps.Notes.Save(v.ctx, v.Key(), text); err != nil {
		return err
	}
	v.mu.Lock()
	v.note, v.hasNote = text, true
	v.mu.Unlock()
	return nil
}

func (v *DetailsView) DeleteNote() error {
	if v.State() == StateClosed {
		return ErrViewClosed
	}
	if err := v.deps.Notes.Delete(v.ctx, v.Key()); err != nil {
		return err
	}
	v.mu.Lock()
	v.note, v.hasNote = "", false
	v.mu.Unlock()
	return nil
}

func (v *DetailsView) readyLocked() error {
	switch {
	case v.state == StateClosed:
		return ErrViewClosed
	case v.state != StateReady || v.city == nil:
		return ErrNotReady
	}
	return nil
}

// Close leaves the view: pending fetches lose their context and every job is
// stopped. It is safe to call more than once.
func (v *DetailsView) Close() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	v.state = StateClosed
	v.mu.Unlock()

	v.cancel()
	if err := v.sched.Shutdown(); err != nil {
		v.log.Warnw("Scheduler shutdown", "error", err)
	}
	v.log.Infow("Details view closed")
}

// Snapshot is the renderable state of a details view.
type Snapshot struct {
	ViewID        string      `json:"viewId"`
	Key           string      `json:"key"`
	State         string      `json:"state"`
	City          *model.City `json:"city,omitempty"`
	Note          string      `json:"note"`
	HasNote       bool        `json:"hasNote"`
	LastUpdated   string      `json:"lastUpdated,omitempty"`
	Countdown     int         `json:"countdown"`
	CountdownText string      `json:"countdownText"`
	WindDirection string      `json:"windDirection,omitempty"`
	Sunrise       string      `json:"sunrise,omitempty"`
	Sunset        string      `json:"sunset,omitempty"`
	LocalTime     string      `json:"localTime,omitempty"`
	IconURL       string      `json:"iconUrl,omitempty"`
	Error         string      `json:"error,omitempty"`
	Redirecting   bool        `json:"redirecting,omitempty"`
}

func (v *DetailsView) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := Snapshot{
		ViewID:        v.id.String(),
		Key:           v.key.String(),
		State:         v.state.String(),
		Note:          v.note,
		HasNote:       v.hasNote,
		LastUpdated:   v.lastUpdated,
		Countdown:     v.countdown.Remaining(),
		CountdownText: v.countdown.String(),
		Error:         v.errMsg,
		Redirecting:   v.redirecting,
	}
	if v.city != nil {
		city := v.city.Clone()
		city.RawData = nil
		s.City = &city
		s.WindDirection = model.WindDirection(city.Wind.Deg)
		s.Sunrise = model.LocalClock(city.Sys.Sunrise, city.Timezone)
		s.Sunset = model.LocalClock(city.Sys.Sunset, city.Timezone)
		s.LocalTime = model.LocalClock(v.now().Unix(), city.Timezone)
		s.IconURL = model.IconURL(city.Weather.Icon)
	}
	return s
}
