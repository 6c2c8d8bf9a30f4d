// Package countdown tracks competition start/end timers published by the platform.
//
// The server sends its own clock and a set of named unix timestamps. Dates are
// converted to the local clock using the measured offset, so a skewed local
// clock does not open or close the competition early.
package countdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// ErrNoServerTime is returned for a payload without server_timestamp
var ErrNoServerTime = errors.New("countdown payload has no server timestamp")

// Countdown is a parsed countdown payload
type Countdown struct {
	// Dates are event times on the local clock
	Dates  map[string]time.Time
	Passed map[string]bool
	// Offset is server clock minus local clock
	Offset time.Duration
}

// Parse builds a countdown from the raw payload. now is the local time the
// payload was received at.
func Parse(data map[string]json.RawMessage, now time.Time) (*Countdown, error) {
	raw, ok := data[pkgapi.ServerTimestampKey]
	if !ok {
		return nil, ErrNoServerTime
	}
	var stamp string
	if err := json.Unmarshal(raw, &stamp); err != nil {
		return nil, fmt.Errorf("invalid server timestamp: %w", err)
	}
	serverTime, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, fmt.Errorf("invalid server timestamp: %w", err)
	}

	c := &Countdown{
		Dates:  make(map[string]time.Time, len(data)-1),
		Passed: make(map[string]bool, len(data)-1),
		Offset: serverTime.Sub(now),
	}
	for key, value := range data {
		if key == pkgapi.ServerTimestampKey {
			continue
		}
		var seconds float64
		if err := json.Unmarshal(value, &seconds); err != nil {
			return nil, fmt.Errorf("invalid countdown %q: %w", key, err)
		}
		event := time.Unix(0, int64(seconds*float64(time.Second)))
		c.Dates[key] = event.Add(-c.Offset)
		c.Passed[key] = event.Before(serverTime)
	}
	return c, nil
}

// Keys returns countdown names sorted by date
func (c *Countdown) Keys() []string {
	keys := make([]string, 0, len(c.Dates))
	for k := range c.Dates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := c.Dates[keys[i]], c.Dates[keys[j]]
		if di.Equal(dj) {
			return keys[i] < keys[j]
		}
		return di.Before(dj)
	})
	return keys
}

// Remaining returns the time left until key, negative once passed
func (c *Countdown) Remaining(key string, now time.Time) time.Duration {
	date, ok := c.Dates[key]
	if !ok {
		return 0
	}
	return date.Sub(now)
}

// ServerNow returns the server clock at local time now
func (c *Countdown) ServerNow(now time.Time) time.Time {
	return now.Add(c.Offset)
}

// Recheck recomputes Passed at local time now and returns the keys that flipped
func (c *Countdown) Recheck(now time.Time) []string {
	var changed []string
	for _, key := range c.Keys() {
		passed := c.Dates[key].Before(now)
		if passed != c.Passed[key] {
			changed = append(changed, key)
		}
		c.Passed[key] = passed
	}
	return changed
}

// Source fetches the countdown payload. *api.Client implements it.
type Source interface {
	GetCountdown(ctx context.Context) (map[string]json.RawMessage, error)
}

// Tracker keeps the latest countdown and watches for timers passing
type Tracker struct {
	src     Source
	now     func() time.Time
	logger  *slog.Logger
	current *Countdown
	mu      sync.Mutex
}

// Option настраивает Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a tracker reading from src
func NewTracker(src Source, opts ...Option) *Tracker {
	t := &Tracker{
		src:    src,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Refresh fetches and stores a new countdown
func (t *Tracker) Refresh(ctx context.Context) (*Countdown, error) {
	data, err := t.src.GetCountdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countdown: %w", err)
	}
	c, err := Parse(data, t.now())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.current = c
	t.mu.Unlock()
	return c, nil
}

// Current returns a copy of the latest countdown, nil before Refresh
func (t *Tracker) Current() *Countdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	out := &Countdown{
		Dates:  make(map[string]time.Time, len(t.current.Dates)),
		Passed: make(map[string]bool, len(t.current.Passed)),
		Offset: t.current.Offset,
	}
	for k, v := range t.current.Dates {
		out.Dates[k] = v
	}
	for k, v := range t.current.Passed {
		out.Passed[k] = v
	}
	return out
}

// Recheck updates the stored countdown and returns keys that flipped
func (t *Tracker) Recheck() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	return t.current.Recheck(t.now())
}

// Watch rechecks every interval until ctx is done. onChange runs for every
// tick where a timer passed, typically to reload the challenge catalog.
func (t *Tracker) Watch(ctx context.Context, interval time.Duration, onChange func(ctx context.Context, keys []string)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if changed := t.Recheck(); len(changed) > 0 {
				t.logger.InfoContext(ctx, "countdown passed", "keys", changed)
				onChange(ctx, changed)
			}
		}
	}
}
