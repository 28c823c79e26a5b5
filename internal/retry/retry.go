// Package retry re-attempts database operations that fail with transient
// errors.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/crankdb/internal/dberr"
)

// Interval describes the delay between attempts. Min == Max is a fixed
// interval; otherwise the delay doubles per attempt, capped at Max.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

// DefaultInterval is a fixed 100ms pause between attempts.
var DefaultInterval = Interval{Min: 100 * time.Millisecond, Max: 100 * time.Millisecond}

// Fixed returns an interval that always waits d.
func Fixed(d time.Duration) Interval { return Interval{Min: d, Max: d} }

// Backoff returns an exponential interval between min and max.
func Backoff(min, max time.Duration) Interval { return Interval{Min: min, Max: max} }

// IsFixed reports whether every retry waits the same amount of time.
func (i Interval) IsFixed() bool { return i.Min == i.Max }

func (i Interval) String() string {
	if i.IsFixed() {
		return i.Min.String()
	}
	return i.Min.String() + "," + i.Max.String()
}

// ParseInterval accepts "100ms" or "100ms,5s". A bare number is read as
// milliseconds.
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultInterval, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > 2 {
		return Interval{}, dberr.Argument("invalid retry interval %q: expected <min>[,<max>]", s)
	}
	min, err := parseDuration(parts[0])
	if err != nil {
		return Interval{}, dberr.Argument("invalid retry interval %q: %v", s, err)
	}
	if len(parts) == 1 {
		return Fixed(min), nil
	}
	max, err := parseDuration(parts[1])
	if err != nil {
		return Interval{}, dberr.Argument("invalid retry interval %q: %v", s, err)
	}
	if max < min {
		return Interval{}, dberr.Argument("invalid retry interval %q: max is below min", s)
	}
	return Backoff(min, max), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Policy configures retry behavior for one execution context.
type Policy struct {
	// RetryNumber is the number of retries after the first attempt.
	RetryNumber int
	Interval    Interval
	// ShouldRetry decides whether err is transient. Defaults to
	// dberr.IsRetryable.
	ShouldRetry func(error) bool
	// OnRetry, when set, is called before sleeping ahead of attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	rand *rand.Rand
}

// Attempts is the maximum number of attempts made per operation.
func (p Policy) Attempts() int {
	if p.RetryNumber < 0 {
		return 1
	}
	return p.RetryNumber + 1
}

// Delay returns the pause before the given attempt (1-based, attempt >= 2).
func (p *Policy) Delay(attempt int) time.Duration {
	iv := p.Interval
	if iv.IsFixed() {
		return iv.Min
	}
	exp := attempt - 2
	if exp < 0 {
		exp = 0
	}
	d := float64(iv.Min) * math.Pow(2, float64(exp))
	if d > float64(iv.Max) {
		d = float64(iv.Max)
	}
	// Up to 10% jitter, never past Max.
	if p.rand == nil {
		p.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	d += d * 0.1 * p.rand.Float64()
	if d > float64(iv.Max) {
		d = float64(iv.Max)
	}
	return time.Duration(d)
}

func (p *Policy) retryable(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return dberr.IsRetryable(err)
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempt budget is spent. fn receives the 1-based attempt number. Do
// returns the number of attempts made.
//
// When every attempt fails transiently the returned error is a
// QueryRetriesExceeded wrapping the last failure.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	max := p.Attempts()
	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr, delay)
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return attempt - 1, ctx.Err()
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if !p.retryable(lastErr) {
			return attempt, lastErr
		}
	}
	return max, dberr.RetriesExceeded(p.RetryNumber, lastErr)
}
