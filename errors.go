package zastepstwa

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ericselin/zastepstwa/cache"
	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"
)

// Kind classifies a failed resolution.
type Kind int

const (
	KindInvalidDate Kind = iota + 1
	KindInvalidParameter
	KindNoSubstitutionsWeekend
	KindNoLessonsWeekend
	KindNoSubstitutionsForDate
	KindUnknownUpstreamStatus
	KindUpstreamUnreachable
	KindCacheIO
	// KindInternal is a failure outside the resolution steps, e.g. a panic.
	KindInternal
)

var kindNames = map[Kind]string{
	KindInvalidDate:            "invalid-date",
	KindInvalidParameter:       "invalid-parameter",
	KindNoSubstitutionsWeekend: "no-substitutions-weekend",
	KindNoLessonsWeekend:       "no-lessons-weekend",
	KindNoSubstitutionsForDate: "no-substitutions-for-date",
	KindUnknownUpstreamStatus:  "unknown-upstream-status",
	KindUpstreamUnreachable:    "upstream-unreachable",
	KindCacheIO:                "cache-io",
	KindInternal:               "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus is the status code the error is served with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidDate, KindInvalidParameter:
		return http.StatusBadRequest
	case KindNoSubstitutionsWeekend, KindNoLessonsWeekend, KindNoSubstitutionsForDate:
		return http.StatusNotFound
	case KindUnknownUpstreamStatus:
		return http.StatusBadGateway
	case KindUpstreamUnreachable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error is the terminal failure of a resolution.
// Only the fields relevant to Kind are set.
type Error struct {
	Kind Kind
	Date canonicaldate.Date
	// Weekday is the weekend day for the weekend kinds.
	Weekday time.Weekday
	// Status is the upstream status for KindUnknownUpstreamStatus.
	Status int
	// Op is the failed filesystem operation for KindCacheIO.
	Op  cache.Op
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Date != "" {
		msg += " " + string(e.Date)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code numbers cache failures in the messages shown to users,
// so that reports can be matched with the logs.
func (e *Error) Code() int {
	switch e.Op {
	case cache.OpCreate:
		return 1
	case cache.OpWrite:
		return 3
	case cache.OpOpen:
		return 4
	case cache.OpStat:
		return 5
	case cache.OpEvict:
		return 6
	}
	return 0
}

// KindOf returns the kind of err, and false if err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func dateError(err error) *Error {
	var weekend *canonicaldate.WeekendError
	switch {
	case errors.As(err, &weekend) && weekend.Tomorrow:
		return &Error{Kind: KindNoSubstitutionsWeekend, Weekday: weekend.Weekday, Err: err}
	case errors.As(err, &weekend):
		return &Error{Kind: KindNoLessonsWeekend, Weekday: weekend.Weekday, Err: err}
	case errors.Is(err, canonicaldate.ErrInvalidDate):
		return &Error{Kind: KindInvalidDate, Err: err}
	}
	return &Error{Kind: KindInvalidParameter, Err: err}
}

func cacheError(date canonicaldate.Date, err error) *Error {
	e := &Error{Kind: KindCacheIO, Date: date, Err: err}
	var ioErr *cache.IOError
	if errors.As(err, &ioErr) {
		e.Op = ioErr.Op
	}
	return e
}
