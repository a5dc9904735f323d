package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"mairiecal/internal/config"
	"mairiecal/internal/gateway"
	"mairiecal/internal/ics"
	appLog "mairiecal/internal/log"
	"mairiecal/internal/model"
	"mairiecal/internal/store"
	"mairiecal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	exportPath string
}

func main() {
	if err := run(); err != nil {
		appLog.Error("mairiecal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func run() error {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return err
	}
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("mairiecal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"api", conf.APIBaseURL,
		"token_file", conf.TokenFile != "",
		"refresh", conf.RefreshCron,
		"fallback_feed", conf.FallbackICSURL != "",
		"once", flags.once,
		"export", flags.exportPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := gateway.NewClient(gateway.Options{
		BaseURL: conf.APIBaseURL,
		Timeout: conf.APITimeout,
		Token:   gateway.FileToken(conf.TokenFile),
	})
	if err != nil {
		return err
	}

	opts := []store.Option{store.WithGateway(client)}
	if conf.FallbackICSURL != "" {
		opts = append(opts, store.WithFallback(ics.FeedFallback{
			Fetcher:  ics.NewFetcher(conf.ICSCacheDir, nil),
			Source:   ics.Source{ID: "fallback", URL: conf.FallbackICSURL},
			Location: conf.Location(),
		}))
	}
	st := store.New(opts...)

	if err := st.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	appLog.Info("schedule loaded", "mode", st.Mode(), "events", len(st.List(model.Filter{})))

	switch {
	case flags.exportPath != "":
		return exportICS(st, conf, flags.exportPath)
	case flags.once:
		return printStatus(st, conf)
	}

	sched, err := startScheduler(ctx, st, conf)
	if err != nil {
		return err
	}
	if sched != nil {
		defer func() { <-sched.Stop().Done() }()
	}

	api := web.NewServer(conf, st, web.WithUpcomingSource(client))
	defer api.Close()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown", err)
	}
	appLog.Info("mairiecal exiting")
	return nil
}

// startScheduler runs Store.Refresh on the configured cron spec. It returns
// nil when periodic refresh is disabled.
func startScheduler(ctx context.Context, st *store.Store, conf *config.Config) (*cron.Cron, error) {
	if !conf.RefreshEnabled() {
		appLog.Info("periodic refresh disabled")
		return nil, nil
	}

	c := cron.New(cron.WithLocation(conf.Location()))
	_, err := c.AddFunc(conf.RefreshCron, func() {
		rctx, cancel := context.WithTimeout(ctx, conf.APITimeout*2)
		defer cancel()
		if err := st.Refresh(rctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		appLog.Debug("scheduled refresh done", "mode", st.Mode())
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", conf.RefreshCron, err)
	}
	c.Start()
	appLog.Info("periodic refresh scheduled", "spec", conf.RefreshCron)
	return c, nil
}

func exportICS(st *store.Store, conf *config.Config, path string) error {
	body := ics.Encode(st.List(model.Filter{}), conf.Location())
	if path == "-" {
		_, err := fmt.Fprint(os.Stdout, body)
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar exported", "path", path)
	return nil
}

func printStatus(st *store.Store, conf *config.Config) error {
	stats := st.Stats(time.Now().In(conf.Location()))
	fmt.Printf("mode: %s\n", stats.Mode)
	if stats.LastError != "" {
		fmt.Printf("last error: %s\n", stats.LastError)
	}
	fmt.Printf("events: %d (today %d, this week %d, upcoming %d)\n",
		stats.Total, stats.Today, stats.ThisWeek, stats.Upcoming)
	fmt.Printf("confirmed %d, pending %d, cancelled %d\n",
		stats.ByStatus[model.StatusConfirmed],
		stats.ByStatus[model.StatusPending],
		stats.ByStatus[model.StatusCancelled])
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/mairiecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to an optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, print the schedule status and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Refresh once, write the schedule as ICS to this path (- for stdout) and exit")

	flag.Parse()
	return cfg
}
