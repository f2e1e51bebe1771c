package marketclock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/types"
)

// ErrNoTradingDay is returned when no trading day can be found within the
// calendar scan horizon.
var ErrNoTradingDay = errors.New("no upcoming trading day within scan horizon")

// maxCalendarScanDays bounds the search for the next trading day so a broken
// calendar cannot spin the clock forever.
const maxCalendarScanDays = 30

type dayTime struct {
	hour, minute int
}

func parseDayTime(s string) (dayTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return dayTime{}, fmt.Errorf("invalid time of day '%s': %w", s, err)
	}
	return dayTime{hour: t.Hour(), minute: t.Minute()}, nil
}

func (d dayTime) on(date time.Time, loc *time.Location) time.Time {
	y, m, day := date.In(loc).Date()
	return time.Date(y, m, day, d.hour, d.minute, 0, 0, loc)
}

// Clock computes the trading-day schedule and the current phase for a fixed
// reference timezone.
type Clock struct {
	loc      *time.Location
	cal      Calendar
	preLogin dayTime
	open     dayTime
	close    dayTime

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Clock for the given timezone and schedule times (HH:MM).
func New(timezone, preLogin, open, close string, cal Calendar) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	c := &Clock{loc: loc, cal: cal, now: time.Now, sleep: sleepCtx}
	if c.preLogin, err = parseDayTime(preLogin); err != nil {
		return nil, err
	}
	if c.open, err = parseDayTime(open); err != nil {
		return nil, err
	}
	if c.close, err = parseDayTime(close); err != nil {
		return nil, err
	}
	return c, nil
}

// Location returns the reference timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the reference timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// ScheduleFor derives the trading schedule for the calendar day containing t.
func (c *Clock) ScheduleFor(t time.Time) types.TradingSchedule {
	return types.TradingSchedule{
		PreMarketLogin: c.preLogin.on(t, c.loc),
		MarketOpen:     c.open.on(t, c.loc),
		MarketClose:    c.close.on(t, c.loc),
	}
}

// Phase maps an instant to exactly one phase. The pre-open login window is
// [preMarketLogin, open); the open window is [open, close]; everything else,
// including non-trading days and calendar failures, is closed.
func (c *Clock) Phase(now time.Time) types.Phase {
	now = now.In(c.loc)

	tradingDay, err := c.cal.IsTradingDay(now)
	if err != nil {
		logger.Warn(context.Background(), "Calendar lookup failed, treating phase as closed", "error", err)
		return types.PhaseClosed
	}
	if !tradingDay {
		return types.PhaseClosed
	}

	sched := c.ScheduleFor(now)
	switch {
	case !now.Before(sched.PreMarketLogin) && now.Before(sched.MarketOpen):
		return types.PhasePreOpenLogin
	case !now.Before(sched.MarketOpen) && !now.After(sched.MarketClose):
		return types.PhaseOpen
	default:
		return types.PhaseClosed
	}
}

// NextOpenWindow returns the next pre-market login instant strictly after the
// current day's window has passed, skipping weekends and holidays.
func (c *Clock) NextOpenWindow(after time.Time) (time.Time, error) {
	after = after.In(c.loc)

	for i := 0; i <= maxCalendarScanDays; i++ {
		day := after.AddDate(0, 0, i)
		tradingDay, err := c.cal.IsTradingDay(day)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar lookup failed for %s: %w", day.Format("2006-01-02"), err)
		}
		if !tradingDay {
			continue
		}
		start := c.preLogin.on(day, c.loc)
		if start.After(after) {
			return start, nil
		}
	}

	return time.Time{}, ErrNoTradingDay
}

// WaitUntilNextOpenWindow blocks until the next trading day's pre-market login
// window begins, or until the context is cancelled.
func (c *Clock) WaitUntilNextOpenWindow(ctx context.Context) error {
	now := c.Now()
	next, err := c.NextOpenWindow(now)
	if err != nil {
		return err
	}

	wait := next.Sub(now)
	logger.Info(ctx, "Sleeping until next pre-market login window",
		"next_window", next.Format(time.RFC3339),
		"wait", wait.Round(time.Second).String(),
	)
	return c.sleep(ctx, wait)
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
