package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/ericselin/zastepstwa"
	journal "github.com/ericselin/zastepstwa/pkg/fetch-journal"
	"github.com/ericselin/zastepstwa/pkg/upstream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

var (
	// CLI flags
	configFilenameFlag  string
	portFlag            int
	originFlag          string
	cacheDirFlag        string
	freshnessFlag       time.Duration
	timezoneFlag        string
	upstreamTimeoutFlag time.Duration
	journalFlag         string
	verbosityTraceFlag  bool
	logFilenameFlag     string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to YAML config file")
	flag.IntVar(&portFlag, "port", 8000, "Port to listen on")
	flag.StringVar(&originFlag, "origin", upstream.DefaultOrigin, "School website to download substitutions from")
	flag.StringVar(&cacheDirFlag, "cache-dir", zastepstwa.DefaultCacheDir, "Directory for downloaded PDFs")
	flag.DurationVar(&freshnessFlag, "freshness", zastepstwa.DefaultFreshness, "How long a downloaded PDF is served from cache")
	flag.StringVar(&timezoneFlag, "timezone", "", "Time zone for today and tomorrow (default local)")
	flag.DurationVar(&upstreamTimeoutFlag, "upstream-timeout", 0, "Timeout for requests to the origin (0 for none)")
	flag.StringVar(&journalFlag, "journal", "", "Fetch journal: 'memory' or SQLite file name (disabled if empty)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	fileConfig := zastepstwa.FileConfig{}
	if configFilenameFlag != "" {
		var err error
		if fileConfig, err = zastepstwa.LoadConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not load config")
		}
	}
	applyFlags(&fileConfig)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// run returns instead of exiting so that its deferred cleanup always happens
	if err := run(fileConfig, quit); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// run serves until quit receives or the server fails.
func run(fileConfig zastepstwa.FileConfig, quit <-chan os.Signal) error {
	location, err := fileConfig.Location()
	if err != nil {
		return fmt.Errorf("unknown time zone %q: %w", fileConfig.Timezone, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	config := zastepstwa.Config{
		CacheDir:        fileConfig.CacheDir,
		Freshness:       fileConfig.Freshness,
		OriginURL:       fileConfig.Origin,
		UpstreamTimeout: fileConfig.UpstreamTimeout,
		UserAgent:       "zastepstwa/" + version,
		Location:        location,
		Logger:          &log.Logger,
		Registry:        registry,
		Messages:        fileConfig.Messages,
	}

	config.Journal, err = openJournal(fileConfig.Journal)
	if err != nil {
		return fmt.Errorf("could not open fetch journal %s: %w", fileConfig.Journal, err)
	}
	if config.Journal != nil {
		defer func() {
			if err := config.Journal.Close(); err != nil {
				log.Error().Err(err).Msg("Could not close fetch journal")
			}
		}()
	}

	subs, err := zastepstwa.New(config)
	if err != nil {
		return fmt.Errorf("could not set up cache: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", fileConfig.Port),
		Handler:           subs,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("Serving substitutions from %s on port %d (cache in %s)", fileConfig.Origin, fileConfig.Port, fileConfig.CacheDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}

// openJournal returns the configured journal, nil if disabled.
func openJournal(name string) (journal.Journal, error) {
	switch name {
	case "":
		return nil, nil
	case "memory":
		return journal.NewMemJournal(), nil
	}
	return journal.NewSQLiteJournal(name)
}

// applyFlags fills the config from the command line.
// Flags given explicitly win over the file, defaults only fill gaps.
func applyFlags(c *zastepstwa.FileConfig) {
	if flag.CommandLine.Changed("port") || c.Port <= 0 {
		c.Port = portFlag
	}
	if flag.CommandLine.Changed("origin") || c.Origin == "" {
		c.Origin = originFlag
	}
	if flag.CommandLine.Changed("cache-dir") || c.CacheDir == "" {
		c.CacheDir = cacheDirFlag
	}
	if flag.CommandLine.Changed("freshness") || c.Freshness == 0 {
		c.Freshness = freshnessFlag
	}
	if flag.CommandLine.Changed("timezone") || c.Timezone == "" {
		c.Timezone = timezoneFlag
	}
	if flag.CommandLine.Changed("upstream-timeout") {
		c.UpstreamTimeout = upstreamTimeoutFlag
	}
	if flag.CommandLine.Changed("journal") || c.Journal == "" {
		c.Journal = journalFlag
	}
}
