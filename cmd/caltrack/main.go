package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"caltrack/internal/config"
	"caltrack/internal/ics"
	"caltrack/internal/ledger"
	appLog "caltrack/internal/log"
	"caltrack/internal/scan"
	"caltrack/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	verify     bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.verify {
		conf.Verify = true
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("caltrack starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"calendars", len(conf.Calendars),
		"once", flags.once,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
		loc = time.Local
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := ledger.OpenStore(conf.LedgerPath)
	if err != nil {
		appLog.Error("failed to open ledger store", err, "path", conf.LedgerPath)
		os.Exit(1)
	}
	defer store.Close()

	cache := ledger.New()
	if data, err := store.LoadAll(ctx); err != nil {
		appLog.Error("failed to load persisted ledger; starting empty", err)
	} else {
		cache.ReplaceAll(data)
	}

	var diag scan.Diagnostics = scan.NopDiagnostics{}
	if conf.Verify {
		diag = scan.LogDiagnostics{}
	}
	scanner := scan.New(scan.Config{
		PageURL: conf.PageURL,
		Timeout: time.Duration(conf.ScanTimeoutSec) * time.Second,
		Verify:  conf.Verify,
	}, diag)

	a := &app{
		cfg:     conf,
		loc:     loc,
		cache:   cache,
		store:   store,
		scanner: scanner,
		fetcher: ics.NewFetcher(conf.CacheDir),
	}

	if flags.once {
		if err := a.refresh(ctx); err != nil {
			appLog.Error("refresh failed", err)
			os.Exit(1)
		}
		return
	}

	// Periodic refresh driven by cron.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		runCtx, runCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer runCancel()
		if err := a.refresh(runCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, cache, loc, a.refresh).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("caltrack exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/caltrack/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh cycle and exit")
	flag.BoolVar(&cfg.verify, "verify", false, "Enable scan/feed cross-check diagnostics")

	flag.Parse()

	return cfg
}
