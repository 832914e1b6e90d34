package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"plancal/internal/capture"
	"plancal/internal/config"
	"plancal/internal/eventcache"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/planner"
	"plancal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	noCapture  bool
	debug      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("plancal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone in config", err, "timezone", conf.Timezone)
		return 1
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"hide_recurring", conf.HideRecurring,
		"personal_sources", len(conf.Personal.Sources),
		"professional_sources", len(conf.Professional.Sources),
		"once", flags.once,
		"debug", flags.debug,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	svc := buildService(conf, loc, flags.debug)

	if flags.once {
		return runOnce(ctx, conf, svc, flags)
	}

	// Periodic refresh via cron.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		if err := svc.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		if !flags.noCapture {
			capturePreview(ctx, conf, flags.debug)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Warm the cache before serving; a failure here is not fatal, the
	// first request will retry the load.
	if err := svc.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	server := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, svc, flags.debug).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			return 1
		}
	}

	appLog.Info("plancal exiting")
	return 0
}

// runOnce performs a single refresh (and preview capture unless disabled),
// then exits. Useful for cron-external scheduling and smoke tests.
func runOnce(ctx context.Context, conf *config.Config, svc *planner.Service, flags flagConfig) int {
	if err := svc.Refresh(ctx); err != nil {
		appLog.Error("refresh failed", err)
		return 1
	}
	if flags.noCapture {
		return 0
	}

	// The capture navigates to our own server, so serve for the duration.
	server := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, svc, flags.debug).Handler(),
	}
	go func() { _ = server.ListenAndServe() }()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	capturePreview(ctx, conf, flags.debug)
	return 0
}

// buildService constructs the planner service and links each account that
// has configured sources.
func buildService(conf *config.Config, loc *time.Location, debug bool) *planner.Service {
	cacheDir := "/var/lib/plancal/ics-cache"
	if debug {
		cacheDir = "./cache/ics-cache"
	}
	fetcher := ics.NewFetcher(cacheDir)

	filter := eventcache.FilterOptions{
		HideRecurring: conf.HideRecurring,
		IncludeAllDay: conf.ShowAllDay,
		IncludeTimed:  true,
		HourStart:     conf.DayStartHour,
		HourEnd:       conf.DayEndHour,
	}
	svc := planner.New(loc, filter)

	for _, account := range model.Accounts() {
		sources := make([]ics.Source, 0)
		for _, sc := range conf.SourcesFor(account) {
			if sc.URL == "" {
				continue
			}
			id := sc.ID
			if id == "" {
				if sc.Name != "" {
					id = sc.Name
				} else {
					id = sc.URL
				}
			}
			sources = append(sources, ics.Source{ID: id, URL: sc.URL, Account: account})
		}
		if len(sources) == 0 {
			continue
		}

		loader, err := ics.NewAccountLoader(fetcher, sources, loc)
		if err != nil {
			appLog.Error("failed to build account loader", err, "account", account)
			continue
		}
		if err := svc.LinkAccount(account, func(ctx context.Context, start, end time.Time) ([]model.Event, error) {
			return loader.Load(ctx, start, end)
		}); err != nil {
			appLog.Error("failed to link account", err, "account", account)
		}
	}

	return svc
}

// capturePreview screenshots today's timeline page into the preview path.
func capturePreview(ctx context.Context, conf *config.Config, debug bool) {
	outputPath := "/var/lib/plancal/preview.png"
	if debug {
		outputPath = "./cache/preview.png"
	}

	opts := capture.Options{
		URL:        "http://" + conf.Listen + "/timeline",
		OutputPath: outputPath,
	}
	if err := capture.TimelinePNG(ctx, opts); err != nil {
		appLog.Error("preview capture failed", err)
		return
	}
	appLog.Info("preview captured", "path", outputPath)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/plancal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh(+capture) cycle and exit")
	flag.BoolVar(&cfg.noCapture, "no-capture", false, "Skip preview capture")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local cache paths")

	flag.Parse()

	return cfg
}
