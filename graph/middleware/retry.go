package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/dshills/langgraph-go/graph/tool"
)

// Retry watches tool observations for error markers and records
// exponential-backoff retry state in the run's Context under the keys
// "should_retry", "retry_count" and "retry_delay". This middleware does not
// itself re-run the tool call — it only classifies and schedules — and the
// executor in graph/agent does not read these keys, so no tool call is
// re-invoked unless the caller acts on them.
type Retry struct {
	Base

	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	RetryableErrors []string // empty = retry any error marker
}

// NewRetry returns a Retry middleware with the reference defaults: up to
// 3 retries, starting at 100ms, capped at 10s.
func NewRetry() *Retry {
	return &Retry{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second}
}

func (r *Retry) shouldRetry(observation string, retryCount int) bool {
	if retryCount >= r.MaxRetries {
		return false
	}
	if len(r.RetryableErrors) == 0 {
		return true
	}
	for _, e := range r.RetryableErrors {
		if strings.Contains(observation, e) {
			return true
		}
	}
	return false
}

func (r *Retry) delayFor(retryCount int) time.Duration {
	delay := r.InitialDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	if delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

func (r *Retry) AfterToolCall(_ context.Context, _ AgentAction, observation string, _ *tool.Runtime, mc *Context) (*string, error) {
	isError := strings.Contains(observation, "error") || strings.Contains(observation, "Error")
	if !isError {
		mc.Set("should_retry", false)
		mc.Set("retry_count", 0)
		return nil, nil
	}

	retryCount := 0
	if v, ok := mc.Get("retry_count"); ok {
		if n, ok := v.(int); ok {
			retryCount = n
		}
	}
	if r.shouldRetry(observation, retryCount) {
		mc.Set("should_retry", true)
		mc.Set("retry_count", retryCount+1)
		mc.Set("retry_delay", r.delayFor(retryCount))
	}
	return nil, nil
}

var _ Middleware = (*Retry)(nil)
