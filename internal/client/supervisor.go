package client

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/aGit2048/virtual-debugger/internal/asynclock"
)

// ReconnectOutcome is how a reconnect episode ended.
type ReconnectOutcome int

// Reconnect outcomes.
const (
	// ReconnectSkipped means another episode was already running, or the
	// client was disposed.
	ReconnectSkipped ReconnectOutcome = iota
	ReconnectSucceeded
	ReconnectExhausted
	ReconnectAborted
)

func (o ReconnectOutcome) String() string {
	switch o {
	case ReconnectSkipped:
		return "skipped"
	case ReconnectSucceeded:
		return "succeeded"
	case ReconnectExhausted:
		return "exhausted"
	case ReconnectAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Hooks observe the reconnect supervisor. Nil fields are skipped. Hooks run
// on the supervisor goroutine and must not call back into the client's
// Connect, Disconnect or Close.
type Hooks struct {
	// OnReconnectAttempt runs before each attempt (1-based).
	OnReconnectAttempt func(attempt int)

	// OnBackoff runs after a failed attempt, once the backoff timer has been
	// armed and before the supervisor waits on it.
	OnBackoff func(attempt int, delay time.Duration)

	// OnReconnectDone runs once per episode that actually started.
	OnReconnectDone func(outcome ReconnectOutcome, attempts int)
}

// BackoffDelay returns base * 2^(attempt-1), saturating instead of
// overflowing.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 || base <= 0 {
		return base
	}
	shift := uint(attempt - 1)
	if shift >= 63 || base > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return base << shift
}

// supervisor runs reconnect episodes. It knows nothing about transports;
// connect is the manager's own connect path.
type supervisor struct {
	connect     func(ctx context.Context) error
	onAttempt   func(attempt int)
	clock       clock.Clock
	delay       time.Duration
	maxAttempts int
	hooks       Hooks
	logger      Logger

	mu         *asynclock.Mutex
	inProgress atomic.Bool
	attempts   atomic.Int32

	cancelMu sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
}

// TryReconnect runs one episode and reports its outcome. A call made while
// an episode is running, or after stop, returns ReconnectSkipped at once.
//
// The reconnect mutex covers only the claim of the episode. It is released
// before the first attempt, so the connect mutex is never taken under it.
func (s *supervisor) TryReconnect(ctx context.Context) ReconnectOutcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !s.begin(ctx, cancel) {
		return ReconnectSkipped
	}
	defer s.end()

	outcome, attempts := s.run(ctx)
	if s.hooks.OnReconnectDone != nil {
		s.hooks.OnReconnectDone(outcome, attempts)
	}
	return outcome
}

// begin claims the episode: in-progress flag set and cancel func armed.
func (s *supervisor) begin(ctx context.Context, cancel context.CancelFunc) bool {
	guard, err := s.mu.Lock(ctx)
	if err != nil {
		return false
	}
	defer guard.Release()

	if !s.inProgress.CompareAndSwap(false, true) {
		return false
	}
	if !s.arm(cancel) {
		s.inProgress.Store(false)
		return false
	}
	return true
}

func (s *supervisor) end() {
	s.disarm()
	s.inProgress.Store(false)
}

func (s *supervisor) run(ctx context.Context) (ReconnectOutcome, int) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ReconnectAborted, attempt - 1
		}

		s.attempts.Store(int32(attempt)) //nolint:gosec // bounded by maxAttempts
		if s.onAttempt != nil {
			s.onAttempt(attempt)
		}
		if s.hooks.OnReconnectAttempt != nil {
			s.hooks.OnReconnectAttempt(attempt)
		}

		err := s.connect(ctx)
		if err == nil {
			s.attempts.Store(0)
			return ReconnectSucceeded, attempt
		}
		if errors.Is(err, ErrDisposed) || ctx.Err() != nil {
			return ReconnectAborted, attempt
		}
		s.logger.Warn("reconnect attempt failed",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err,
		)

		if attempt == s.maxAttempts {
			break
		}

		delay := BackoffDelay(s.delay, attempt)
		timer := s.clock.Timer(delay)
		if s.hooks.OnBackoff != nil {
			s.hooks.OnBackoff(attempt, delay)
		}
		select {
		case <-ctx.Done():
			timer.Stop()
			return ReconnectAborted, attempt
		case <-timer.C:
		}
	}

	s.logger.Error("reconnect attempts exhausted", "attempts", s.maxAttempts)
	return ReconnectExhausted, s.maxAttempts
}

// arm records the episode's cancel func. It fails once stop has been
// called.
func (s *supervisor) arm(cancel context.CancelFunc) bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.stopped {
		return false
	}
	s.cancel = cancel
	return true
}

func (s *supervisor) disarm() {
	s.cancelMu.Lock()
	s.cancel = nil
	s.cancelMu.Unlock()
}

// Cancel aborts the running episode, if any.
func (s *supervisor) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// stop cancels the running episode and refuses new ones.
func (s *supervisor) stop() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *supervisor) InProgress() bool { return s.inProgress.Load() }

// Attempts is the attempt number of the running episode, or 0.
func (s *supervisor) Attempts() int { return int(s.attempts.Load()) }

func (s *supervisor) resetAttempts() { s.attempts.Store(0) }
