// Package refresh keeps a cached credential fresh by renewing it ahead of
// expiry and tearing the session down when renewal fails.
//
// # Architecture boundaries
//
// This package owns scheduling only. The renewal call itself is an injected
// collaborator; what a successful renewal means is the owner's business.
//
// # What this package must NOT do
//
//   - Perform HTTP or any transport I/O directly.
//   - Decide authentication state; it only reports failure via the forced
//     logout callback.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stackshield/sessionguard/cache"
	"github.com/stackshield/sessionguard/token"
)

const (
	// DefaultLeadTime is how far before credential expiry renewal fires.
	DefaultLeadTime = 5 * time.Minute
	// DefaultWatchdogTick is how often a pending renewal is re-checked for
	// a missed fire, e.g. after the device slept through its timer.
	DefaultWatchdogTick = time.Minute
)

// ErrNoRefreshFunc is returned by NewScheduler when no renewal collaborator
// is provided.
var ErrNoRefreshFunc = errors.New("refresh func is nil")

// RefreshFunc renews the credential. It is typically a thin wrapper around
// the login service's refresh endpoint.
type RefreshFunc func(ctx context.Context) (*token.Token, error)

// Scheduler plans a single renewal per credential and chains onto the renewed
// credential afterwards. One Scheduler serves one credential stream; each
// ScheduleFor call returns an independent cancellable handle.
type Scheduler struct {
	cache    *cache.Cache
	refresh  RefreshFunc
	onForced func()
	logger   zerolog.Logger

	lead time.Duration
	tick time.Duration

	now func() time.Time
}

// NewScheduler creates a scheduler. cache and onForced may be nil; lead and
// tick fall back to [DefaultLeadTime] and [DefaultWatchdogTick] when <= 0.
func NewScheduler(c *cache.Cache, refresh RefreshFunc, onForced func(), logger zerolog.Logger, lead, tick time.Duration) (*Scheduler, error) {
	if refresh == nil {
		return nil, ErrNoRefreshFunc
	}
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	if tick <= 0 {
		tick = DefaultWatchdogTick
	}
	return &Scheduler{
		cache:    c,
		refresh:  refresh,
		onForced: onForced,
		logger:   logger,
		lead:     lead,
		tick:     tick,
		now:      time.Now,
	}, nil
}

// Handle is one running renewal chain. Cancel stops it; Done closes when the
// chain ends for any reason (cancelled, or renewal failed and the session was
// torn down).
type Handle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Cancel stops the chain. Safe to call more than once and after the chain
// has already ended.
func (h *Handle) Cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done reports chain termination. A renewal in flight when Cancel is called
// still completes; Done closes after it does.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ScheduleFor starts the renewal chain for cred. The first renewal fires
// lead-time before the credential expires, or immediately if that moment has
// already passed. Each successful renewal stores the new credential and
// schedules the next one; a failed renewal clears the cache and invokes the
// forced logout callback.
func (s *Scheduler) ScheduleFor(cred *token.Token) *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run(h, cred)
	return h
}

func (s *Scheduler) run(h *Handle, cred *token.Token) {
	defer close(h.done)

	for {
		delay := cred.TimeUntilExpiry(s.now()) - s.lead
		if delay > 0 && !s.wait(h, delay) {
			return
		}

		select {
		case <-h.stop:
			return
		default:
		}

		next, err := s.refresh(context.Background())
		if err != nil {
			s.logger.Warn().Err(err).Msg("credential refresh failed, forcing logout")
			if s.cache != nil {
				s.cache.Clear()
			}
			if s.onForced != nil {
				s.onForced()
			}
			return
		}

		if s.cache != nil {
			if err := s.cache.Store(next); err != nil {
				s.logger.Error().Err(err).Msg("failed to store refreshed credential")
			}
		}
		s.logger.Debug().
			Time("expires_at", next.ExpiresAt()).
			Msg("credential refreshed")
		cred = next
	}
}

// wait blocks until the renewal is due, watching for both the timer and the
// watchdog tick. The watchdog catches timers that slept through their fire
// time. Returns false if the handle was cancelled.
func (s *Scheduler) wait(h *Handle, delay time.Duration) bool {
	dueAt := s.now().Add(delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case <-ticker.C:
			if !s.now().Before(dueAt) {
				return true
			}
		case <-h.stop:
			return false
		}
	}
}
