// Statewriter is a development tool that plays the monitor: it rewrites the
// state file with changing service statuses so statusd and the dashboard
// have something to show.
//
// Usage:
//
//	go run ./scripts/statewriter --state-file estado_actual.json --interval 5s
//	go run ./scripts/statewriter --once --services 8
package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/healthdash/internal/statefile"
	"github.com/angeloszaimis/healthdash/internal/status"
	"github.com/angeloszaimis/healthdash/pkg/logger"
)

var names = []string{
	"Avionics", "Asset API", "Auth", "Billing", "Cache",
	"Database", "Gateway", "Queue", "Scheduler", "Search",
}

var states = []string{
	status.StatusOK, status.StatusOK, status.StatusOK,
	status.StatusWarning, status.StatusError, status.StatusCritical,
}

var failures = []string{
	"ConnectionTimeout", "connection refused", "OOMKilled", "CrashLoopBackOff", "readiness probe failed",
}

func main() {
	path := pflag.String("state-file", "estado_actual.json", "state file to rewrite")
	interval := pflag.Duration("interval", 5*time.Second, "time between rewrites")
	count := pflag.Int("services", 5, "number of services to report")
	once := pflag.Bool("once", false, "write a single snapshot and exit")
	pflag.Parse()

	log := logger.New("info", false, "dev")
	store := statefile.New(*path, "dev", log)

	if *count > len(names) {
		*count = len(names)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	write := func() {
		services := generate(*count, time.Now())
		if err := store.Write(services); err != nil {
			log.Error("Writing state failed", slog.Any("err", err))
			return
		}
		log.Info("State written",
			slog.String("path", store.Path()),
			slog.Int("services", len(services)))
	}

	write()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			write()
		}
	}
}

func generate(n int, now time.Time) []status.Service {
	services := make([]status.Service, 0, n)
	for i := 0; i < n; i++ {
		s := status.Service{
			Name:        names[i],
			Status:      states[rand.IntN(len(states))],
			LastChecked: now.Format(status.CheckedLayout),
		}
		if s.Status != status.StatusOK {
			s.LastError = failures[rand.IntN(len(failures))]
			s.RestartsLastHour = rand.IntN(5)
			s.Restarted = s.RestartsLastHour > 0
		}
		services = append(services, s)
	}
	return services
}
