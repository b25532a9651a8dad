package scheduler

import (
	"sync"

	"github.com/fakhrymubarak/weather-tracker/internal/model"
)

// Countdown is the cosmetic seconds-until-refresh counter. It never goes below zero.
type Countdown struct {
	mu        sync.Mutex
	start     int
	remaining int
}

func NewCountdown(seconds int) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{start: seconds, remaining: seconds}
}

// Reset puts the counter back to its starting value.
func (c *Countdown) Reset() {
	c.mu.Lock()
	c.remaining = c.start
	c.mu.Unlock()
}

// Tick removes one second and returns what is left.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// String renders the remaining time as m:ss.
func (c *Countdown) String() string {
	return model.FormatCountdown(c.Remaining())
}
