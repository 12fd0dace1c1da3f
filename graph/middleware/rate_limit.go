package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/langgraph-go/graph/tool"
)

// RateLimit enforces a sliding-window cap on agent planning calls
// (overall) and/or per-tool calls, rejecting with ValidationError once
// the window is full.
type RateLimit struct {
	Base

	RequestsPerSecond int // 0 = unlimited
	RequestsPerMinute int // 0 = unlimited
	PerToolPerMinute  map[string]int

	mu           sync.Mutex
	requestTimes []time.Time
	toolTimes    map[string][]time.Time
}

// NewRateLimit builds an unconfigured RateLimit; set RequestsPerSecond,
// RequestsPerMinute, and/or PerToolPerMinute before use.
func NewRateLimit() *RateLimit {
	return &RateLimit{PerToolPerMinute: make(map[string]int), toolTimes: make(map[string][]time.Time)}
}

func pruneOlderThan(times []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	return kept
}

func (r *RateLimit) checkGlobal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()

	r.requestTimes = pruneOlderThan(r.requestTimes, now, time.Minute)
	if r.RequestsPerSecond > 0 {
		inLastSecond := pruneOlderThan(append([]time.Time(nil), r.requestTimes...), now, time.Second)
		if len(inLastSecond) >= r.RequestsPerSecond {
			return ValidationError(fmt.Sprintf("rate limit exceeded: %d requests per second", r.RequestsPerSecond))
		}
	}
	if r.RequestsPerMinute > 0 {
		r.requestTimes = pruneOlderThan(r.requestTimes, now, time.Minute)
		if len(r.requestTimes) >= r.RequestsPerMinute {
			return ValidationError(fmt.Sprintf("rate limit exceeded: %d requests per minute", r.RequestsPerMinute))
		}
	}
	r.requestTimes = append(r.requestTimes, now)
	return nil
}

func (r *RateLimit) checkTool(name string) error {
	limit, ok := r.PerToolPerMinute[name]
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	times := pruneOlderThan(r.toolTimes[name], now, time.Minute)
	if len(times) >= limit {
		r.toolTimes[name] = times
		return ValidationError(fmt.Sprintf("rate limit exceeded for tool %s: %d requests per minute", name, limit))
	}
	r.toolTimes[name] = append(times, now)
	return nil
}

func (r *RateLimit) BeforeAgentPlan(_ context.Context, _ PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	if err := r.checkGlobal(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *RateLimit) BeforeToolCall(_ context.Context, action AgentAction, _ *tool.Runtime, _ *Context) (*AgentAction, error) {
	if err := r.checkTool(action.Tool); err != nil {
		return nil, err
	}
	return nil, nil
}

var _ Middleware = (*RateLimit)(nil)
