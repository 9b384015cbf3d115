package zastepstwa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ericselin/zastepstwa/cache"
	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"
	"github.com/ericselin/zastepstwa/pkg/clock"
	journal "github.com/ericselin/zastepstwa/pkg/fetch-journal"
	"github.com/ericselin/zastepstwa/pkg/metrics"
	"github.com/ericselin/zastepstwa/pkg/upstream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheDir  = "cached"
	DefaultFreshness = 10 * time.Minute
	DefaultUserAgent = "zastepstwa"
)

// Fetcher downloads the substitutions PDF for a date.
// Errors are expected to be upstream.ErrNotFound, *upstream.StatusError
// or anything else for an unreachable upstream.
type Fetcher interface {
	Fetch(ctx context.Context, date canonicaldate.Date) ([]byte, error)
}

type Config struct {
	// Storage for downloaded PDFs.
	// A DirCache in CacheDir is created and initialized if nil.
	Cache cache.ArtifactCache
	// Directory of the default cache.
	CacheDir string
	// How long a stored PDF is served without asking the origin again.
	Freshness time.Duration
	// Upstream to download from.
	// A Fetcher for OriginURL is created if nil.
	Fetcher Fetcher
	// URL of the school website, upstream.DefaultOrigin if empty.
	OriginURL string
	// Timeout of upstream requests. Zero means no timeout.
	UpstreamTimeout time.Duration
	UserAgent       string
	// Clock used for dates and freshness. The real clock is used if nil.
	Clock clock.Clock
	// Time zone that days are counted in, time.Local if nil.
	Location *time.Location
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional history of upstream fetches.
	Journal journal.Journal
	// Registry for the metrics, also served on /metrics.
	// A new registry is created if nil.
	Registry *prometheus.Registry
	// Overrides of the default messages.
	Messages Messages
}

type Substitutions struct {
	cache     cache.ArtifactCache
	fetcher   Fetcher
	resolver  canonicaldate.Resolver
	clock     clock.Clock
	freshness time.Duration
	log       zerolog.Logger
	journal   journal.Journal
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	messages  Messages
	flights   singleflight.Group
	router    http.Handler
}

// Artifact is a resolved PDF, open for reading.
// The caller must close it.
type Artifact struct {
	*os.File
	Date    canonicaldate.Date
	Name    string
	ModTime time.Time
	Status  CacheStatus
}

// New sets up the resolver, its cache and its HTTP routes.
// The cache directory is created if the default cache is used.
func New(config Config) (*Substitutions, error) {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	origin := config.OriginURL
	if origin == "" {
		origin = upstream.DefaultOrigin
	}
	logger = logger.With().
		Str("origin", origin).
		Logger()

	c := config.Clock
	if c == nil {
		c = clock.Real()
	}
	freshness := config.Freshness
	if freshness <= 0 {
		freshness = DefaultFreshness
	}

	s := &Substitutions{
		cache:     config.Cache,
		fetcher:   config.Fetcher,
		resolver:  canonicaldate.NewResolver(c, config.Location),
		clock:     c,
		freshness: freshness,
		log:       logger,
		journal:   config.Journal,
		registry:  config.Registry,
		messages:  DefaultMessages().Merge(config.Messages),
	}

	if s.cache == nil {
		dir := config.CacheDir
		if dir == "" {
			dir = DefaultCacheDir
		}
		dirCache := cache.NewDirCache(dir, freshness, c)
		if err := dirCache.Init(); err != nil {
			return nil, err
		}
		s.cache = dirCache
	}

	if s.fetcher == nil {
		userAgent := config.UserAgent
		if userAgent == "" {
			userAgent = DefaultUserAgent
		}
		fetcher, err := upstream.NewFetcher(origin, config.UpstreamTimeout, userAgent, logger)
		if err != nil {
			return nil, err
		}
		s.fetcher = fetcher
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = metrics.NewMetrics(s.registry)
	s.router = s.routes()

	return s, nil
}

// Messages returns the message table in use.
func (s *Substitutions) Messages() Messages {
	return s.messages
}

// ServeHTTP implements the http.Handler interface.
func (s *Substitutions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// resolved is the shared result of a cache-or-fetch cycle.
type resolved struct {
	path   string
	status CacheStatus
}

// Resolve turns an intent into an open PDF, downloading it if the cache
// has no fresh copy. The returned error is always an *Error.
func (s *Substitutions) Resolve(ctx context.Context, intent canonicaldate.Intent) (*Artifact, error) {
	log := s.log.With().Stringer("intent", intent).Logger()

	date, err := s.resolver.Resolve(intent)
	if err != nil {
		e := dateError(err)
		log.Warn().Err(err).Msg("Could not resolve date")
		s.metrics.ResolutionsTotal.WithLabelValues(e.Kind.String()).Inc()
		return nil, e
	}
	log = log.With().Str("date", string(date)).Logger()

	// concurrent requests for the same date share one cycle
	// the cycle outlives a disconnecting client so the download is not wasted
	flightCtx := context.WithoutCancel(ctx)
	// Do reports shared for the leader too, only callers that joined are counted
	leader := false
	v, err, shared := s.flights.Do(string(date), func() (any, error) {
		leader = true
		return s.cacheOrFetch(flightCtx, date, log)
	})
	if shared && !leader {
		s.metrics.SharedFetchesTotal.Inc()
	}
	if err != nil {
		s.metrics.ResolutionsTotal.WithLabelValues(kindLabel(err)).Inc()
		return nil, err
	}
	res := v.(resolved)

	file, err := s.cache.Open(res.path)
	if err != nil {
		log.Error().Err(err).Msg("Could not open cached file")
		e := cacheError(date, err)
		s.metrics.ResolutionsTotal.WithLabelValues(e.Kind.String()).Inc()
		return nil, e
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		log.Error().Err(err).Msg("Could not stat cached file")
		e := cacheError(date, &cache.IOError{Op: cache.OpOpen, Path: res.path, Err: err})
		s.metrics.ResolutionsTotal.WithLabelValues(e.Kind.String()).Inc()
		return nil, e
	}

	status := res.status
	if ttl := s.freshness - s.clock.Now().Sub(info.ModTime()); ttl > 0 {
		status.TimeToLive = int(ttl.Seconds())
	}
	s.metrics.ResolutionsTotal.WithLabelValues("served").Inc()

	return &Artifact{
		File:    file,
		Date:    date,
		Name:    filepath.Base(res.path),
		ModTime: info.ModTime(),
		Status:  status,
	}, nil
}

func (s *Substitutions) cacheOrFetch(ctx context.Context, date canonicaldate.Date, log zerolog.Logger) (resolved, error) {
	var cs CacheStatus

	state, path, err := s.cache.Lookup(date)
	if err != nil {
		log.Error().Err(err).Msg("Could not check cache")
		return resolved{}, cacheError(date, err)
	}
	s.metrics.CacheLookupsTotal.WithLabelValues(state.String()).Inc()
	log.Trace().Stringer("state", state).Msg("Cache lookup")

	switch state {
	case cache.Fresh:
		log.Info().Msg("Returning cached data")
		cs.Hit()
		return resolved{path: path, status: cs}, nil
	case cache.Stale:
		log.Info().Msg("Deleting old cached data")
		if err := s.cache.Evict(path); err != nil {
			log.Error().Err(err).Msg("Could not delete old cached data")
			return resolved{}, cacheError(date, err)
		}
		cs.Forward(CacheStatusFwdStale)
	default:
		cs.Forward(CacheStatusFwdUriMiss)
	}

	body, err := s.fetch(ctx, date, log)
	if err != nil {
		return resolved{}, err
	}

	path, err = s.cache.Store(date, body)
	if err != nil {
		log.Error().Err(err).Msg("Could not save downloaded data")
		return resolved{}, cacheError(date, err)
	}
	cs.Stored = true
	log.Info().Int("size", len(body)).Msg("Saved new data")

	return resolved{path: path, status: cs}, nil
}

// fetch downloads the PDF and records the outcome.
func (s *Substitutions) fetch(ctx context.Context, date canonicaldate.Date, log zerolog.Logger) ([]byte, error) {
	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, date)
	s.metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds())

	entry := journal.Entry{
		Date:      string(date),
		FetchedAt: s.clock.Now(),
	}

	var statusErr *upstream.StatusError
	var result *Error
	switch {
	case err == nil:
		entry.Outcome = journal.OutcomeSuccess
		entry.Status = http.StatusOK
		entry.Size = len(body)
		entry.Digest = journal.Digest(body)
	case errors.Is(err, upstream.ErrNotFound):
		log.Warn().Msg("No substitutions published for date")
		entry.Outcome = journal.OutcomeNotFound
		entry.Status = http.StatusNotFound
		result = &Error{Kind: KindNoSubstitutionsForDate, Date: date, Err: err}
	case errors.As(err, &statusErr):
		log.Error().Int("status", statusErr.Code).Msg("Unknown status from origin")
		entry.Outcome = journal.OutcomeStatus
		entry.Status = statusErr.Code
		result = &Error{Kind: KindUnknownUpstreamStatus, Date: date, Status: statusErr.Code, Err: err}
	default:
		log.Error().Err(err).Msg("Origin unreachable")
		entry.Outcome = journal.OutcomeTransport
		result = &Error{Kind: KindUpstreamUnreachable, Date: date, Err: err}
	}
	s.metrics.UpstreamFetchesTotal.WithLabelValues(string(entry.Outcome)).Inc()
	s.record(ctx, entry, log)

	if result != nil {
		return nil, result
	}
	return body, nil
}

// record writes the entry to the journal, if any.
// Failures are logged only.
func (s *Substitutions) record(ctx context.Context, entry journal.Entry, log zerolog.Logger) {
	if s.journal == nil {
		return
	}
	if entry.Outcome == journal.OutcomeSuccess {
		last, ok, err := s.journal.LastSuccess(ctx, entry.Date)
		if err != nil {
			log.Error().Err(err).Msg("Could not read fetch journal")
		} else if ok && last.Digest != entry.Digest {
			log.Info().
				Str("previous", last.Digest).
				Str("digest", entry.Digest).
				Time("previousFetch", last.FetchedAt).
				Msg("Substitutions changed")
		}
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Could not write fetch journal")
	}
}

// History returns the latest journaled fetches, newest first.
// It is empty if no journal is configured.
func (s *Substitutions) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("could not read fetch journal: %w", err)
	}
	return entries, nil
}

func kindLabel(err error) string {
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	return "unknown"
}
