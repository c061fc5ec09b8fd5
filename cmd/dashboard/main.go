package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/healthdash/config"
	"github.com/angeloszaimis/healthdash/internal/dashboard"
	"github.com/angeloszaimis/healthdash/internal/httpserver"
	"github.com/angeloszaimis/healthdash/internal/metrics"
	"github.com/angeloszaimis/healthdash/internal/scheduler"
	"github.com/angeloszaimis/healthdash/internal/statusapi"
	"github.com/angeloszaimis/healthdash/internal/tui"
	"github.com/angeloszaimis/healthdash/pkg/logger"
)

// defaultLogFile receives the dashboard's logs when none is configured;
// stdout belongs to the terminal UI.
const defaultLogFile = "healthdash.log"

type options struct {
	configFile string
	debugAddr  string
}

func main() {
	opts, v := parseFlags(os.Args[1:])

	cfg, err := config.LoadWith(v, opts.configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logFile := cfg.Logging.File
	if logFile == "" {
		logFile = defaultLogFile
	}
	log, closer, err := logger.OpenFile(logFile, cfg.Logging.Level, true, cfg.Server.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(256, log)
	collector.Start(ctx)

	ctrl, err := newController(cfg, log, collector)
	if err != nil {
		log.Error("Failed to create dashboard", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer ctrl.Teardown()

	if opts.debugAddr != "" {
		srv, err := newDebugServer(opts.debugAddr, collector)
		if err != nil {
			log.Error("Failed to create debug server", slog.Any("err", err))
			os.Exit(1)
		}
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Debug server stopped", slog.Any("err", err))
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	if err := tui.Run(ctx, ctrl, cfg.Dashboard.RefreshEvery(), ctrl.OnChange); err != nil {
		log.Error("Dashboard exited with error", slog.Any("err", err))
		ctrl.Teardown()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, *viper.Viper) {
	var opts options

	flags := pflag.NewFlagSet("dashboard", pflag.ExitOnError)
	flags.StringVar(&opts.configFile, "config", "", "path to the configuration file")
	flags.StringVar(&opts.debugAddr, "debug-addr", "", "serve poll metrics as JSON on this address")
	flags.String("base-url", "", "base URL of the status backend")
	flags.String("refresh-interval", "", "auto-refresh interval, e.g. 30s")
	flags.Bool("auto-refresh", true, "start with auto-refresh enabled")
	_ = flags.Parse(args)

	v := viper.New()
	_ = v.BindPFlag("dashboard.base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("dashboard.refresh_interval", flags.Lookup("refresh-interval"))
	_ = v.BindPFlag("dashboard.auto_refresh", flags.Lookup("auto-refresh"))

	return opts, v
}

func newController(cfg *config.Config, log *slog.Logger, collector *metrics.Collector) (*dashboard.Controller, error) {
	client, err := statusapi.New(cfg.Dashboard.BaseURL, cfg.Dashboard.Timeout(),
		statusapi.WithStatusPath(cfg.Dashboard.StatusPath),
		statusapi.WithSystemPath(cfg.Dashboard.SystemPath))
	if err != nil {
		return nil, err
	}

	dcfg := dashboard.Config{
		RefreshInterval: cfg.Dashboard.RefreshEvery(),
		NotificationTTL: cfg.Dashboard.NotificationLifetime(),
		TimeLayout:      cfg.Dashboard.TimeLayout,
		AutoRefresh:     cfg.Dashboard.AutoRefresh,
	}

	return dashboard.New(client, scheduler.New(log), log, dcfg, dashboard.WithCollector(collector)), nil
}

func newDebugServer(addr string, collector *metrics.Collector) (*httpserver.Server, error) {
	router := mux.NewRouter()
	router.HandleFunc("/debug/polls", collector.Handler()).Methods("GET")

	return httpserver.New(addr, router)
}
