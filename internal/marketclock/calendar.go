package marketclock

import (
	"fmt"
	"time"
)

// Calendar answers whether a given date is a trading day. Implementations may
// consult an external source; an error means the answer is unknown, which the
// clock treats as a non-trading day.
type Calendar interface {
	IsTradingDay(t time.Time) (bool, error)
}

// HolidayCalendar is the default calendar: weekdays minus a configured
// holiday list.
type HolidayCalendar struct {
	holidays map[string]struct{}
}

// NewHolidayCalendar builds a calendar from YYYY-MM-DD holiday dates.
func NewHolidayCalendar(dates []string) (*HolidayCalendar, error) {
	holidays := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday date '%s': %w", d, err)
		}
		holidays[d] = struct{}{}
	}
	return &HolidayCalendar{holidays: holidays}, nil
}

func (c *HolidayCalendar) IsTradingDay(t time.Time) (bool, error) {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false, nil
	}
	_, holiday := c.holidays[t.Format("2006-01-02")]
	return !holiday, nil
}
