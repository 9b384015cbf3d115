package zastepstwa

import (
	"strconv"
	"strings"
	"time"
)

// Messages is the text shown to users. Placeholders are {date}, {status}
// and {code}. Fields left empty in an override keep their default.
type Messages struct {
	InvalidDate            string `yaml:"invalidDate"`
	InvalidParameter       string `yaml:"invalidParameter"`
	TomorrowSaturday       string `yaml:"tomorrowSaturday"`
	TomorrowSunday         string `yaml:"tomorrowSunday"`
	TodaySaturday          string `yaml:"todaySaturday"`
	TodaySunday            string `yaml:"todaySunday"`
	NoSubstitutionsForDate string `yaml:"noSubstitutionsForDate"`
	UnknownUpstreamStatus  string `yaml:"unknownUpstreamStatus"`
	UpstreamUnreachable    string `yaml:"upstreamUnreachable"`
	CacheIO                string `yaml:"cacheIO"`
	Internal               string `yaml:"internal"`
	FileNotFound           string `yaml:"fileNotFound"`
	Status                 string `yaml:"status"`
	NotFound               string `yaml:"notFound"`
}

// DefaultMessages returns the Polish message table.
func DefaultMessages() Messages {
	return Messages{
		InvalidDate:            "Niepoprawna data!",
		InvalidParameter:       "Niepoprawny parametr!",
		TomorrowSaturday:       "Jest jutro sobota, więc nie ma zastępstw!",
		TomorrowSunday:         "Jest jutro niedziela, więc nie ma zastępstw!",
		TodaySaturday:          "Jest dziś sobota, nie ma dziś żadnych lekcji!",
		TodaySunday:            "Jest dziś niedziela, nie ma dziś żadnych lekcji!",
		NoSubstitutionsForDate: "Nie ma obecnie zastępstw na dzień {date}",
		UnknownUpstreamStatus:  "Serwer zwrócił nieznany status {status}! Spróbuj ponownie później",
		UpstreamUnreachable:    "Szkoła jest offline! Spróbuj ponownie później.",
		CacheIO:                "Error #{code}, zgłoś ten problem do twórcy!",
		Internal:               "Wystąpił błąd serwera, zgłoś ten problem do twórcy!",
		FileNotFound:           "Nie ma takiego pliku!",
		Status:                 "Strona jest online!",
		NotFound:               "Nie ma takiej strony! Jeśli uważasz że to błąd, napisz do twórcy.",
	}
}

// Merge returns m with every non-empty field of override applied.
func (m Messages) Merge(override Messages) Messages {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&m.InvalidDate, override.InvalidDate)
	set(&m.InvalidParameter, override.InvalidParameter)
	set(&m.TomorrowSaturday, override.TomorrowSaturday)
	set(&m.TomorrowSunday, override.TomorrowSunday)
	set(&m.TodaySaturday, override.TodaySaturday)
	set(&m.TodaySunday, override.TodaySunday)
	set(&m.NoSubstitutionsForDate, override.NoSubstitutionsForDate)
	set(&m.UnknownUpstreamStatus, override.UnknownUpstreamStatus)
	set(&m.UpstreamUnreachable, override.UpstreamUnreachable)
	set(&m.CacheIO, override.CacheIO)
	set(&m.Internal, override.Internal)
	set(&m.FileNotFound, override.FileNotFound)
	set(&m.Status, override.Status)
	set(&m.NotFound, override.NotFound)
	return m
}

// For returns the user-facing message for a resolution error.
func (m Messages) For(e *Error) string {
	var tmpl string
	switch e.Kind {
	case KindInvalidDate:
		tmpl = m.InvalidDate
	case KindInvalidParameter:
		tmpl = m.InvalidParameter
	case KindNoSubstitutionsWeekend:
		tmpl = m.TomorrowSunday
		if e.Weekday == time.Saturday {
			tmpl = m.TomorrowSaturday
		}
	case KindNoLessonsWeekend:
		tmpl = m.TodaySunday
		if e.Weekday == time.Saturday {
			tmpl = m.TodaySaturday
		}
	case KindNoSubstitutionsForDate:
		tmpl = m.NoSubstitutionsForDate
	case KindUnknownUpstreamStatus:
		tmpl = m.UnknownUpstreamStatus
	case KindUpstreamUnreachable:
		tmpl = m.UpstreamUnreachable
	case KindInternal:
		tmpl = m.Internal
	default:
		tmpl = m.CacheIO
	}
	return strings.NewReplacer(
		"{date}", string(e.Date),
		"{status}", strconv.Itoa(e.Status),
		"{code}", strconv.Itoa(e.Code()),
	).Replace(tmpl)
}
