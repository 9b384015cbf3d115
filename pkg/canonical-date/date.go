// Package canonicaldate turns an incoming request into the DD.MM.YYYY date
// that keys both the local cache and the upstream file name.
package canonicaldate

import (
	"errors"
	"fmt"
	"time"

	"github.com/ericselin/zastepstwa/pkg/clock"
)

// Layout is the time layout of a canonical date.
const Layout = "02.01.2006"

const (
	Today    = "today"
	Tomorrow = "tomorrow"
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoSubstitutionsWeekend is returned for "tomorrow" when tomorrow is a weekend day.
	ErrNoSubstitutionsWeekend = errors.New("no substitutions on weekends")
	// ErrNoLessonsWeekend is returned for "today" when today is a weekend day.
	ErrNoLessonsWeekend = errors.New("no lessons on weekends")
)

// Date is a canonical date, e.g. 15.03.2024.
type Date string

func (d Date) String() string {
	return string(d)
}

// Filename is the name of the PDF for this date, both locally and upstream.
func (d Date) Filename() string {
	return string(d) + ".pdf"
}

// Format returns the canonical date of t in t's location.
func Format(t time.Time) Date {
	return Date(t.Format(Layout))
}

// Intent is what the client asked for: either an explicit day and month,
// or a relative token such as "today".
type Intent struct {
	Day   uint8
	Month uint8
	Token string

	relative bool
}

// Explicit returns an intent for a day of a month in the current year.
func Explicit(day, month uint8) Intent {
	return Intent{Day: day, Month: month}
}

// Relative returns an intent for a token relative to now.
func Relative(token string) Intent {
	return Intent{Token: token, relative: true}
}

func (i Intent) IsRelative() bool {
	return i.relative
}

func (i Intent) String() string {
	if i.relative {
		return i.Token
	}
	return fmt.Sprintf("%d.%d", i.Day, i.Month)
}

// WeekendError reports that the resolved day falls on a weekend.
// It wraps ErrNoSubstitutionsWeekend or ErrNoLessonsWeekend.
type WeekendError struct {
	// Weekday is the weekend day that was hit.
	Weekday time.Weekday
	// Tomorrow is true when the request was for tomorrow.
	Tomorrow bool
}

func (e *WeekendError) Error() string {
	if e.Tomorrow {
		return fmt.Sprintf("tomorrow is %s", e.Weekday)
	}
	return fmt.Sprintf("today is %s", e.Weekday)
}

func (e *WeekendError) Unwrap() error {
	if e.Tomorrow {
		return ErrNoSubstitutionsWeekend
	}
	return ErrNoLessonsWeekend
}

// Resolver resolves intents against a clock in a fixed location.
type Resolver struct {
	clock    clock.Clock
	location *time.Location
}

// NewResolver returns a Resolver. A nil clock means the real clock and a
// nil location means time.Local.
func NewResolver(c clock.Clock, location *time.Location) Resolver {
	if c == nil {
		c = clock.Real()
	}
	if location == nil {
		location = time.Local
	}
	return Resolver{clock: c, location: location}
}

// Now returns the current time in the resolver's location.
func (r Resolver) Now() time.Time {
	return r.clock.Now().In(r.location)
}

// Resolve returns the canonical date for the intent.
// It does no I/O.
func (r Resolver) Resolve(intent Intent) (Date, error) {
	if intent.relative {
		return r.resolveRelative(intent.Token)
	}
	return r.resolveExplicit(intent.Day, intent.Month)
}

// resolveExplicit does not validate the day against the month:
// 31.02 is passed on to upstream as is.
func (r Resolver) resolveExplicit(day, month uint8) (Date, error) {
	if day > 31 || month > 12 {
		return "", fmt.Errorf("%w: %d.%d", ErrInvalidDate, day, month)
	}
	return Date(fmt.Sprintf("%02d.%02d.%d", day, month, r.Now().Year())), nil
}

func (r Resolver) resolveRelative(token string) (Date, error) {
	now := r.Now()
	switch token {
	case Tomorrow:
		switch now.Weekday() {
		case time.Friday:
			return "", &WeekendError{Weekday: time.Saturday, Tomorrow: true}
		case time.Saturday:
			return "", &WeekendError{Weekday: time.Sunday, Tomorrow: true}
		}
		return Format(now.AddDate(0, 0, 1)), nil
	case Today:
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return "", &WeekendError{Weekday: now.Weekday()}
		}
		return Format(now), nil
	}
	return "", fmt.Errorf("%w: when=%q", ErrInvalidParameter, token)
}
