package monitor

import (
	"context"
	"errors"
	"time"

	"hedgeye-alert-monitor/internal/dedup"
	"hedgeye-alert-monitor/internal/feed"
	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/marketclock"
	"hedgeye-alert-monitor/internal/session"
	"hedgeye-alert-monitor/internal/types"
)

type state int

const (
	stateColdStart state = iota
	stateLoggingIn
	stateMonitoring
	stateIdleOvernight
)

func (s state) String() string {
	switch s {
	case stateColdStart:
		return "COLD_START"
	case stateLoggingIn:
		return "LOGGING_IN"
	case stateMonitoring:
		return "MONITORING"
	default:
		return "IDLE_OVERNIGHT"
	}
}

// Pacing bounds the request rate and keeps timing human-like.
type Pacing struct {
	// EmptyPause follows a poll that found nothing relevant.
	EmptyPause time.Duration
	// AccountPause separates consecutive accounts regardless of outcome.
	AccountPause time.Duration
	// ErrorPause follows a transient poll failure.
	ErrorPause time.Duration
	// PhaseCheck is the re-check interval while waiting for open.
	PhaseCheck time.Duration
	// OvernightRetry is the fallback wait when the overnight schedule cannot
	// be computed (missing calendar data).
	OvernightRetry time.Duration
}

// DefaultPacing mirrors the pacing the feed tolerates.
func DefaultPacing() Pacing {
	return Pacing{
		EmptyPause:     700 * time.Millisecond,
		AccountPause:   600 * time.Millisecond,
		ErrorPause:     700 * time.Millisecond,
		PhaseCheck:     5 * time.Second,
		OvernightRetry: time.Hour,
	}
}

// Loop is the orchestrator: it drives the market clock, the session pool, the
// extractor, the dedup tracker and the dispatcher in a continuous cycle with
// phase-appropriate sleeping and error containment. It runs on a single
// goroutine; the tracker and the session set have no other writers.
type Loop struct {
	pacing     Pacing
	clock      *marketclock.Clock
	pool       *session.Pool
	extractor  interfaces.Extractor
	dispatcher interfaces.Dispatcher
	tracker    *dedup.Tracker

	// Cold start forces one authenticate-and-poll cycle regardless of phase,
	// exactly once per process lifetime, so a mid-day start is not missed.
	firstCycleDone bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the monitor loop.
func New(pacing Pacing, clock *marketclock.Clock, pool *session.Pool, extractor interfaces.Extractor, dispatcher interfaces.Dispatcher, tracker *dedup.Tracker) *Loop {
	return &Loop{
		pacing:     pacing,
		clock:      clock,
		pool:       pool,
		extractor:  extractor,
		dispatcher: dispatcher,
		tracker:    tracker,
		now:        clock.Now,
		sleep:      sleepCtx,
	}
}

// Run drives the state machine until the context is cancelled. There is no
// terminal state; the only non-nil return is the context's error.
func (l *Loop) Run(ctx context.Context) error {
	current := stateColdStart
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := l.step(ctx, current)
		if err != nil {
			return err
		}
		if next != current {
			logger.PhaseChange(ctx, current.String(), next.String())
			current = next
		}
	}
}

func (l *Loop) step(ctx context.Context, current state) (state, error) {
	switch current {
	case stateColdStart:
		// Evaluate as if the pre-open window is active.
		return stateLoggingIn, nil

	case stateLoggingIn:
		return l.runLoggingIn(ctx)

	case stateMonitoring:
		return l.runMonitoring(ctx)

	default: // stateIdleOvernight
		return l.runIdleOvernight(ctx)
	}
}

// runLoggingIn authenticates all accounts, then waits in small increments
// until the open window starts. On the first cycle ever, monitoring begins
// immediately regardless of phase.
func (l *Loop) runLoggingIn(ctx context.Context) (state, error) {
	logger.Info(ctx, "Logging in all accounts")
	if _, err := l.pool.AuthenticateAll(ctx); err != nil {
		return stateLoggingIn, err
	}

	for {
		if !l.firstCycleDone {
			return stateMonitoring, nil
		}

		switch l.clock.Phase(l.now()) {
		case types.PhaseOpen:
			return stateMonitoring, nil
		case types.PhaseClosed:
			// The login window passed without reaching open (early close or
			// schedule change). Fall back to the overnight path.
			return stateIdleOvernight, nil
		default:
			if err := l.sleep(ctx, l.pacing.PhaseCheck); err != nil {
				return stateLoggingIn, err
			}
		}
	}
}

// runMonitoring performs one full pass over the live sessions, then decides
// whether the open window is still active.
func (l *Loop) runMonitoring(ctx context.Context) (state, error) {
	l.firstCycleDone = true

	if len(l.pool.Sessions()) == 0 {
		logger.Warn(ctx, "No live sessions to poll, idling until next trading day")
		return stateIdleOvernight, nil
	}

	// Poll a snapshot of the set; dead sessions are dropped as found.
	for _, s := range append([]*types.Session(nil), l.pool.Sessions()...) {
		if err := l.pollAccount(ctx, s); err != nil {
			return stateMonitoring, err
		}
		// Pace between accounts regardless of outcome.
		if err := l.sleep(ctx, l.pacing.AccountPause); err != nil {
			return stateMonitoring, err
		}
	}

	if l.clock.Phase(l.now()) != types.PhaseOpen {
		logger.Info(ctx, "Market closed, ending monitoring for the day")
		return stateIdleOvernight, nil
	}
	return stateMonitoring, nil
}

// pollAccount polls one session and contains every per-poll failure mode:
// transient extraction errors pause briefly and move on, a dead session is
// dropped for the rest of the day, and sink failures never roll back the
// seen mark. The returned error is reserved for context cancellation.
func (l *Loop) pollAccount(ctx context.Context, s *types.Session) error {
	alert, err := l.extractor.LatestAlert(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, feed.ErrSessionExpired) {
			logger.Warn(ctx, "Dropping dead session for the rest of the day", "account", s.Account.Email)
			l.pool.Drop(s)
			return nil
		}
		logger.ErrorWithErr(ctx, "Poll failed, continuing with next account", err, "account", s.Account.Email)
		return l.sleep(ctx, l.pacing.ErrorPause)
	}

	if alert == nil {
		logger.Debug(ctx, "Current alert not interesting", "account", s.Account.Email)
		return l.sleep(ctx, l.pacing.EmptyPause)
	}

	if !l.tracker.IsNew(alert) {
		return nil
	}

	signal, err := l.dispatcher.Dispatch(ctx, alert)
	if err != nil {
		// Partial or failed delivery still counts as dispatched; repeating
		// it on the next poll would spam the healthy sink.
		logger.ErrorWithErr(ctx, "Dispatch reported sink failures", err, "title", alert.Title)
	}
	logger.Alert(ctx, alert.Title, string(signal.Type), signal.Ticker, "account", s.Account.Email)
	l.tracker.RecordSeen(alert)
	return nil
}

// runIdleOvernight resets all per-day state and sleeps until the next
// trading day's login window.
func (l *Loop) runIdleOvernight(ctx context.Context) (state, error) {
	l.pool.Reset()
	l.tracker.Clear()

	if err := l.clock.WaitUntilNextOpenWindow(ctx); err != nil {
		if ctx.Err() != nil {
			return stateIdleOvernight, ctx.Err()
		}
		// Missing calendar data: stay closed and retry later.
		logger.ErrorWithErr(ctx, "Cannot determine next open window, retrying later", err,
			"retry_in", l.pacing.OvernightRetry.String())
		if err := l.sleep(ctx, l.pacing.OvernightRetry); err != nil {
			return stateIdleOvernight, err
		}
		return stateIdleOvernight, nil
	}

	return stateLoggingIn, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
