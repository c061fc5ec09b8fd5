package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/healthdash/config"
	"github.com/angeloszaimis/healthdash/internal/handler"
	"github.com/angeloszaimis/healthdash/internal/httpserver"
	"github.com/angeloszaimis/healthdash/internal/metrics"
	"github.com/angeloszaimis/healthdash/internal/statefile"
	"github.com/angeloszaimis/healthdash/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("statusd", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to the configuration file")
	flags.String("address", "", "listen address (host:port)")
	flags.String("state-file", "", "path to the monitor state file")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	_ = v.BindPFlag("server.address", flags.Lookup("address"))
	_ = v.BindPFlag("server.state_file", flags.Lookup("state-file"))

	cfg, err := config.LoadWith(v, *configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := newServer(cfg, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Status backend listening",
			slog.String("address", srv.Addr()),
			slog.String("state_file", cfg.Server.StateFile))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting status backend", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func newServer(cfg *config.Config, log *slog.Logger) (*httpserver.Server, error) {
	store := statefile.New(cfg.Server.StateFile, cfg.Server.MonitorVersion, log)
	registry := metrics.NewRegistry("healthdash")
	statusHandler := handler.NewStatusHandler(log, store, registry)

	router := handler.NewRouter(log, statusHandler, registry)

	read, write, idle := cfg.Server.Timeouts()
	return httpserver.New(cfg.Server.Address, http.Handler(router),
		httpserver.WithTimeouts(read, write, idle),
		httpserver.WithShutdownTimeout(cfg.Server.GracePeriod()),
	)
}

func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.Logging.File == "" {
		return logger.New(cfg.Logging.Level, true, cfg.Server.Environment), func() {}, nil
	}

	log, closer, err := logger.OpenFile(cfg.Logging.File, cfg.Logging.Level, true, cfg.Server.Environment)
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = closer.Close() }, nil
}
