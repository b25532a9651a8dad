package app

import (
	"sync"
	"time"
)

// Flash holds one user-facing message that clears itself after ttl.
// Showing a new message restarts the timer.
type Flash struct {
	mu    sync.Mutex
	ttl   time.Duration
	msg   string
	gen   uint64
	timer *time.Timer
}

func NewFlash(ttl time.Duration) *Flash {
	return &Flash{ttl: ttl}
}

func (f *Flash) Show(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	gen := f.gen
	f.msg = msg
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.ttl, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen == gen {
			f.msg = ""
		}
	})
}

func (f *Flash) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msg
}

func (f *Flash) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.msg = ""
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
