package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"hedgeye-alert-monitor/internal/dedup"
	"hedgeye-alert-monitor/internal/feed"
	"hedgeye-alert-monitor/internal/marketclock"
	"hedgeye-alert-monitor/internal/retry"
	"hedgeye-alert-monitor/internal/session"
	"hedgeye-alert-monitor/internal/types"
)

type pollResult struct {
	alert *types.AlertRecord
	err   error
}

// fakeExtractor serves a queue of results per account email. An exhausted
// queue keeps returning nothing relevant.
type fakeExtractor struct {
	results map[string][]pollResult
	polls   map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		results: map[string][]pollResult{},
		polls:   map[string]int{},
	}
}

func (f *fakeExtractor) queue(email string, alert *types.AlertRecord, err error) {
	f.results[email] = append(f.results[email], pollResult{alert: alert, err: err})
}

func (f *fakeExtractor) LatestAlert(_ context.Context, s *types.Session) (*types.AlertRecord, error) {
	email := s.Account.Email
	f.polls[email]++
	q := f.results[email]
	if len(q) == 0 {
		return nil, nil
	}
	f.results[email] = q[1:]
	return q[0].alert, q[0].err
}

type fakeDispatcher struct {
	dispatched []*types.AlertRecord
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, alert *types.AlertRecord) (types.Signal, error) {
	f.dispatched = append(f.dispatched, alert)
	return types.Signal{Name: "Hedgeye", Type: types.SignalBuy, Ticker: "AAPL", Sender: "hedgeye"}, f.err
}

type fakeAuthenticator struct {
	logins int
	fail   bool
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, account types.Account) (*types.Session, error) {
	f.logins++
	if f.fail {
		return nil, errors.New("invalid credentials")
	}
	return &types.Session{Account: account, EstablishedAt: time.Now()}, nil
}

type brokenCalendar struct{}

func (brokenCalendar) IsTradingDay(time.Time) (bool, error) {
	return false, errors.New("calendar source unavailable")
}

func testClock(t *testing.T, cal marketclock.Calendar) *marketclock.Clock {
	t.Helper()
	if cal == nil {
		var err error
		cal, err = marketclock.NewHolidayCalendar(nil)
		if err != nil {
			t.Fatalf("Failed to build calendar: %v", err)
		}
	}
	c, err := marketclock.New("America/New_York", "08:30", "09:30", "16:00", cal)
	if err != nil {
		t.Fatalf("Failed to build clock: %v", err)
	}
	return c
}

// nyTime builds an instant on Monday 2026-03-02, a regular trading day.
func nyTime(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load timezone: %v", err)
	}
	return time.Date(2026, 3, 2, hour, minute, 0, 0, loc)
}

type loopFixture struct {
	loop       *Loop
	auth       *fakeAuthenticator
	extractor  *fakeExtractor
	dispatcher *fakeDispatcher
	pool       *session.Pool
	tracker    *dedup.Tracker
	slept      []time.Duration
}

func newLoopFixture(t *testing.T, cal marketclock.Calendar, now time.Time) *loopFixture {
	t.Helper()

	f := &loopFixture{
		auth:       &fakeAuthenticator{},
		extractor:  newFakeExtractor(),
		dispatcher: &fakeDispatcher{},
		tracker:    dedup.NewTracker(),
	}

	accounts := []types.Account{
		{Email: "first@example.com", Password: "pw1"},
		{Email: "second@example.com", Password: "pw2"},
	}
	retryCfg := retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1.0}
	f.pool = session.NewPool(f.auth, accounts, retryCfg)

	f.loop = New(DefaultPacing(), testClock(t, cal), f.pool, f.extractor, f.dispatcher, f.tracker)
	f.loop.now = func() time.Time { return now }
	f.loop.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.slept = append(f.slept, d)
		return nil
	}
	return f
}

func TestColdStartPollsImmediatelyEvenWhenClosed(t *testing.T) {
	// Sunday night: market closed, but a fresh process must still poll once.
	f := newLoopFixture(t, nil, nyTime(t, 22, 0))
	f.extractor.queue("first@example.com", &types.AlertRecord{Title: "Hedgeye Buy Signal $AAPL", Price: "$150.25"}, nil)

	ctx := context.Background()

	next, err := f.loop.step(ctx, stateColdStart)
	if err != nil || next != stateLoggingIn {
		t.Fatalf("Expected cold start to enter LOGGING_IN, got %s (%v)", next, err)
	}

	next, err = f.loop.step(ctx, stateLoggingIn)
	if err != nil || next != stateMonitoring {
		t.Fatalf("Expected first login cycle to enter MONITORING regardless of phase, got %s (%v)", next, err)
	}
	if f.auth.logins != 2 {
		t.Errorf("Expected both accounts logged in, got %d logins", f.auth.logins)
	}

	next, err = f.loop.step(ctx, stateMonitoring)
	if err != nil {
		t.Fatalf("Expected monitoring pass to succeed, got %v", err)
	}
	if next != stateIdleOvernight {
		t.Errorf("Expected monitoring to end after the forced pass while closed, got %s", next)
	}

	if len(f.dispatcher.dispatched) != 1 {
		t.Fatalf("Expected exactly 1 dispatch, got %d", len(f.dispatcher.dispatched))
	}
	if f.dispatcher.dispatched[0].Title != "Hedgeye Buy Signal $AAPL" {
		t.Errorf("Unexpected dispatched alert: %+v", f.dispatcher.dispatched[0])
	}
	if f.extractor.polls["second@example.com"] != 1 {
		t.Errorf("Expected the second account to be polled too, got %d", f.extractor.polls["second@example.com"])
	}
}

func TestRepeatedTitleIsDispatchedOnce(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))
	alert := func() *types.AlertRecord {
		return &types.AlertRecord{Title: "Hedgeye Buy Signal $AAPL", Price: "$150.25"}
	}
	f.extractor.queue("first@example.com", alert(), nil)
	f.extractor.queue("first@example.com", alert(), nil)
	f.extractor.queue("second@example.com", alert(), nil)

	ctx := context.Background()
	if _, err := f.loop.step(ctx, stateLoggingIn); err != nil {
		t.Fatalf("Login step failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		next, err := f.loop.step(ctx, stateMonitoring)
		if err != nil {
			t.Fatalf("Monitoring pass %d failed: %v", i+1, err)
		}
		if next != stateMonitoring {
			t.Fatalf("Expected to keep monitoring while open, got %s", next)
		}
	}

	if len(f.dispatcher.dispatched) != 1 {
		t.Errorf("Expected 1 dispatch for a repeated title, got %d", len(f.dispatcher.dispatched))
	}
}

func TestExpiredSessionIsDroppedForTheDay(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))
	f.extractor.queue("first@example.com", nil, feed.ErrSessionExpired)

	ctx := context.Background()
	if _, err := f.loop.step(ctx, stateLoggingIn); err != nil {
		t.Fatalf("Login step failed: %v", err)
	}
	if _, err := f.loop.step(ctx, stateMonitoring); err != nil {
		t.Fatalf("Monitoring pass failed: %v", err)
	}

	remaining := f.pool.Sessions()
	if len(remaining) != 1 {
		t.Fatalf("Expected 1 live session after expiry, got %d", len(remaining))
	}
	if remaining[0].Account.Email != "second@example.com" {
		t.Errorf("Expected the healthy session to survive, got %s", remaining[0].Account.Email)
	}

	// Next pass polls only the survivor.
	if _, err := f.loop.step(ctx, stateMonitoring); err != nil {
		t.Fatalf("Monitoring pass failed: %v", err)
	}
	if f.extractor.polls["first@example.com"] != 1 {
		t.Errorf("Expected the dead account to not be polled again, got %d", f.extractor.polls["first@example.com"])
	}
}

func TestTransientPollErrorPausesAndContinues(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))
	f.extractor.queue("first@example.com", nil, errors.New("connection reset"))

	ctx := context.Background()
	if _, err := f.loop.step(ctx, stateLoggingIn); err != nil {
		t.Fatalf("Login step failed: %v", err)
	}
	if _, err := f.loop.step(ctx, stateMonitoring); err != nil {
		t.Fatalf("Expected transient error to be contained, got %v", err)
	}

	if f.extractor.polls["second@example.com"] != 1 {
		t.Error("Expected the pass to continue to the next account")
	}
	var sawErrorPause bool
	for _, d := range f.slept {
		if d == f.loop.pacing.ErrorPause {
			sawErrorPause = true
		}
	}
	if !sawErrorPause {
		t.Errorf("Expected an error pause among sleeps %v", f.slept)
	}
	if len(f.pool.Sessions()) != 2 {
		t.Error("Expected transient error to not drop the session")
	}
}

func TestDispatchFailureStillMarksAlertSeen(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))
	f.dispatcher.err = errors.New("sink down")
	f.extractor.queue("first@example.com", &types.AlertRecord{Title: "SELL TSLA $700"}, nil)
	f.extractor.queue("first@example.com", &types.AlertRecord{Title: "SELL TSLA $700"}, nil)

	ctx := context.Background()
	if _, err := f.loop.step(ctx, stateLoggingIn); err != nil {
		t.Fatalf("Login step failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := f.loop.step(ctx, stateMonitoring); err != nil {
			t.Fatalf("Monitoring pass %d failed: %v", i+1, err)
		}
	}

	if len(f.dispatcher.dispatched) != 1 {
		t.Errorf("Expected the failed dispatch to still mark the alert seen, got %d dispatches", len(f.dispatcher.dispatched))
	}
}

func TestMonitoringWithNoSessionsGoesIdle(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))
	f.auth.fail = true

	ctx := context.Background()
	if _, err := f.loop.step(ctx, stateLoggingIn); err != nil {
		t.Fatalf("Login step failed: %v", err)
	}

	next, err := f.loop.step(ctx, stateMonitoring)
	if err != nil {
		t.Fatalf("Monitoring pass failed: %v", err)
	}
	if next != stateIdleOvernight {
		t.Errorf("Expected IDLE_OVERNIGHT with no live sessions, got %s", next)
	}
	if len(f.dispatcher.dispatched) != 0 {
		t.Errorf("Expected no dispatches, got %d", len(f.dispatcher.dispatched))
	}
}

func TestLoginWaitsForOpenAfterFirstCycle(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 9, 0))
	f.loop.firstCycleDone = true

	// Phase advances from the login window to open after two checks.
	times := []time.Time{nyTime(t, 9, 0), nyTime(t, 9, 10), nyTime(t, 9, 30)}
	i := 0
	f.loop.now = func() time.Time {
		tm := times[i]
		if i < len(times)-1 {
			i++
		}
		return tm
	}

	next, err := f.loop.step(context.Background(), stateLoggingIn)
	if err != nil {
		t.Fatalf("Login step failed: %v", err)
	}
	if next != stateMonitoring {
		t.Fatalf("Expected MONITORING once open, got %s", next)
	}
	if len(f.slept) != 2 {
		t.Errorf("Expected 2 phase-check sleeps before open, got %d", len(f.slept))
	}
}

func TestIdleOvernightResetsDayState(t *testing.T) {
	// A broken calendar keeps the loop in the overnight state with a retry
	// pause instead of an unbounded sleep.
	f := newLoopFixture(t, brokenCalendar{}, nyTime(t, 20, 0))

	ctx := context.Background()
	if _, err := f.pool.AuthenticateAll(ctx); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	seen := &types.AlertRecord{Title: "Buy AAPL $150"}
	f.tracker.RecordSeen(seen)

	next, err := f.loop.step(ctx, stateIdleOvernight)
	if err != nil {
		t.Fatalf("Overnight step failed: %v", err)
	}
	if next != stateIdleOvernight {
		t.Errorf("Expected to stay IDLE_OVERNIGHT when the schedule is unknown, got %s", next)
	}

	if f.pool.Authenticated() || len(f.pool.Sessions()) != 0 {
		t.Error("Expected the session pool to be reset overnight")
	}
	if !f.tracker.IsNew(seen) {
		t.Error("Expected the dedup history to be cleared overnight")
	}
	if len(f.slept) != 1 || f.slept[0] != f.loop.pacing.OvernightRetry {
		t.Errorf("Expected a single overnight retry pause, got %v", f.slept)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	f := newLoopFixture(t, nil, nyTime(t, 12, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
