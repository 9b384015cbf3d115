package zastepstwa

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ericselin/zastepstwa/cache"
	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"
	tee "github.com/ericselin/zastepstwa/pkg/response-writer-tee"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const historyLimit = 50

// fileOpener is implemented by caches that can serve stored files by name.
type fileOpener interface {
	OpenFile(name string) (*os.File, error)
}

func (s *Substitutions) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(s.instrument)
	r.Use(s.recover)

	r.Get("/", s.handleExplicit)
	r.Get("/auto", s.handleRelative)
	r.Get("/auto/", s.handleRelative)
	r.Get("/files/{file}", s.handleFile)
	r.Get("/status", s.handleStatus)
	r.Get("/status/", s.handleStatus)
	r.Get("/history/", s.handleHistory)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	return r
}

// instrument logs every request and records the request metrics.
func (s *Substitutions) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := tee.NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := rec.Duration()
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.StatusCode())).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())

		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", rec.StatusCode()).
			Int64("size", rec.BytesWritten()).
			Dur("duration", duration).
			Str("cacheStatus", w.Header().Get("Cache-Status")).
			Msg("Sending response to client")
	})
}

// recover recovers from panics in handlers and answers with a server error.
func (s *Substitutions) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hlog.FromRequest(r).WithLevel(zerolog.PanicLevel).Interface("error", err).Msg("Panic in handler")
				s.writeError(w, r, &Error{Kind: KindInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Substitutions) handleExplicit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	day, dayErr := strconv.ParseUint(query.Get("day"), 10, 8)
	month, monthErr := strconv.ParseUint(query.Get("month"), 10, 8)
	if dayErr != nil || monthErr != nil {
		s.writeError(w, r, &Error{
			Kind: KindInvalidParameter,
			Err:  errors.Join(canonicaldate.ErrInvalidParameter, dayErr, monthErr),
		})
		return
	}
	s.serve(w, r, canonicaldate.Explicit(uint8(day), uint8(month)))
}

func (s *Substitutions) handleRelative(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, canonicaldate.Relative(r.URL.Query().Get("when")))
}

func (s *Substitutions) serve(w http.ResponseWriter, r *http.Request, intent canonicaldate.Intent) {
	artifact, err := s.Resolve(r.Context(), intent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer artifact.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+artifact.Name+`"`)
	w.Header().Set("Cache-Status", artifact.Status.String())
	http.ServeContent(w, r, artifact.Name, artifact.ModTime, artifact)
}

func (s *Substitutions) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	opener, ok := s.cache.(fileOpener)
	if !ok {
		s.writeMessage(w, http.StatusNotFound, s.messages.FileNotFound)
		return
	}
	file, err := opener.OpenFile(name)
	if errors.Is(err, cache.ErrInvalidName) || errors.Is(err, fs.ErrNotExist) {
		hlog.FromRequest(r).Warn().Err(err).Str("file", name).Msg("File not found")
		s.writeMessage(w, http.StatusNotFound, s.messages.FileNotFound)
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("file", name).Msg("Could not open file")
		s.writeError(w, r, cacheError("", err))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		s.writeMessage(w, http.StatusNotFound, s.messages.FileNotFound)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Substitutions) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, s.messages.Status)
}

type historyEntry struct {
	Date      string    `json:"date"`
	FetchedAt time.Time `json:"fetchedAt"`
	Outcome   string    `json:"outcome"`
	Status    int       `json:"status,omitempty"`
	Size      int       `json:"size,omitempty"`
	Digest    string    `json:"digest,omitempty"`
}

func (s *Substitutions) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.History(r.Context(), historyLimit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not read history")
		s.writeError(w, r, &Error{Kind: KindCacheIO, Err: err})
		return
	}
	history := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, historyEntry{
			Date:      e.Date,
			FetchedAt: e.FetchedAt,
			Outcome:   string(e.Outcome),
			Status:    e.Status,
			Size:      e.Size,
			Digest:    e.Digest,
		})
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Substitutions) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, s.messages.NotFound)
}

// writeError renders a resolution error as {"error": "..."}.
func (s *Substitutions) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Err: err}
	}
	s.writeMessage(w, e.Kind.HTTPStatus(), s.messages.For(e))
}

func (s *Substitutions) writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(text))
}
