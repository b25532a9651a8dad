package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fakhrymubarak/weather-tracker/internal/config"
	"github.com/fakhrymubarak/weather-tracker/internal/model"
	"golang.org/x/time/rate"
)

// DefaultParamKey is the query parameter limited per value.
const DefaultParamKey = "query"

// noParam is the bucket used when the parameter is missing.
const noParam = "__none__"

// visitor holds a limiter and the last time it was used.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limits are requests per minute with a burst.
type Limits struct {
	PerMinute float64
	Burst     int
}

// RateLimiter enforces a per-client limit and a per-client, per-parameter-value limit.
type RateLimiter struct {
	paramKey string
	global   Limits
	param    Limits
	idle     time.Duration

	muGlobal sync.Mutex
	globals  map[string]*visitor // ip
	muParam  sync.Mutex
	params   map[string]map[string]*visitor // ip -> param value
}

// NewRateLimiter reads its limits from config.
func NewRateLimiter(paramKey string) *RateLimiter {
	gRate, gBurst := config.GetGlobalRateLimiterConfig()
	pRate, pBurst := config.GetParamRateLimiterConfig()
	return NewRateLimiterWithLimits(paramKey,
		Limits{PerMinute: gRate, Burst: gBurst},
		Limits{PerMinute: pRate, Burst: pBurst},
		config.GetRateLimiterCleanupTimeout())
}

func NewRateLimiterWithLimits(paramKey string, global, param Limits, idle time.Duration) *RateLimiter {
	if paramKey == "" {
		paramKey = DefaultParamKey
	}
	return &RateLimiter{
		paramKey: paramKey,
		global:   global,
		param:    param,
		idle:     idle,
		globals:  make(map[string]*visitor),
		params:   make(map[string]map[string]*visitor),
	}
}

func newLimiter(l Limits) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.PerMinute/60.0), l.Burst)
}

func (rl *RateLimiter) globalLimiter(ip string) *rate.Limiter {
	rl.muGlobal.Lock()
	defer rl.muGlobal.Unlock()
	v, ok := rl.globals[ip]
	if !ok {
		v = &visitor{limiter: newLimiter(rl.global)}
		rl.globals[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) paramLimiter(ip, param string) *rate.Limiter {
	rl.muParam.Lock()
	defer rl.muParam.Unlock()
	byParam, ok := rl.params[ip]
	if !ok {
		byParam = make(map[string]*visitor)
		rl.params[ip] = byParam
	}
	v, ok := byParam[param]
	if !ok {
		v = &visitor{limiter: newLimiter(rl.param)}
		byParam[param] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// sweep drops visitors idle for longer than the cleanup timeout.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.muGlobal.Lock()
	for ip, v := range rl.globals {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.globals, ip)
		}
	}
	rl.muGlobal.Unlock()

	rl.muParam.Lock()
	for ip, byParam := range rl.params {
		for param, v := range byParam {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(byParam, param)
			}
		}
		if len(byParam) == 0 {
			delete(rl.params, ip)
		}
	}
	rl.muParam.Unlock()
}

// StartCleanup sweeps idle visitors every minute until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.sweep(now)
			}
		}
	}()
}

// Reset clears every visitor. Used primarily for testing.
func (rl *RateLimiter) Reset() {
	rl.muGlobal.Lock()
	clear(rl.globals)
	rl.muGlobal.Unlock()
	rl.muParam.Lock()
	clear(rl.params)
	rl.muParam.Unlock()
}

// getIP extracts the client's IP address, preferring X-Forwarded-For.
func getIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeTooManyRequests(w http.ResponseWriter, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.Failure(errMsg, message))
}

// Middleware responds 429 with a JSON envelope once either limit is exceeded.
// Parameter values are compared case-insensitively.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)
		param := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(rl.paramKey)))
		if param == "" {
			param = noParam
		}

		if !rl.globalLimiter(ip).Allow() {
			config.GetLogger().Infow("Global rate limit exceeded", "ip", ip)
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per user/IP", rl.global.PerMinute),
				"Too Many Requests (global limit)")
			return
		}
		if !rl.paramLimiter(ip, param).Allow() {
			config.GetLogger().Infow("Per-param rate limit exceeded", "ip", ip, rl.paramKey, param)
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per unique %s per user/IP", rl.param.PerMinute, rl.paramKey),
				"Too Many Requests (per-param limit)")
			return
		}
		next.ServeHTTP(w, r)
	})
}
