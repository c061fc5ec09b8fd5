// Package statefile reads and writes the JSON state file shared between the
// monitor and the status backend.
package statefile

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/angeloszaimis/healthdash/internal/status"
)

// SystemName is the name of the synthetic record reported when the state
// file cannot be served as is.
const SystemName = "Monitoring system"

const (
	msgWaiting = "No analysis has run yet"
	msgCorrupt = "Error reading system state"
)

// Store serves the state file at a fixed path.
type Store struct {
	path    string
	version string
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for the last_checked stamp of synthetic
// records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(path, version string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		path:    path,
		version: version,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Status returns the services recorded in the state file. It never fails:
// a missing file yields a WAITING record and an unreadable one an ERROR
// record describing the problem.
func (s *Store) Status() []status.Service {
	body, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s.synthetic(status.StatusWaiting, msgWaiting)
	case err != nil:
		s.logger.Error("Reading state file failed",
			slog.String("path", s.path),
			slog.Any("err", err))
		return s.synthetic(status.StatusError, "Unexpected error: "+err.Error())
	}

	services, err := status.Decode(body)
	if err != nil {
		s.logger.Warn("State file is corrupt",
			slog.String("path", s.path),
			slog.Any("err", err))
		return s.synthetic(status.StatusError, msgCorrupt)
	}

	return services
}

// SystemInfo reports the backend version and the state file's presence and
// modification time.
func (s *Store) SystemInfo() status.SystemInfo {
	info := status.SystemInfo{MonitorVersion: s.version}

	fi, err := os.Stat(s.path)
	if err != nil {
		return info
	}

	mtime := float64(fi.ModTime().UnixNano()) / float64(time.Second)
	info.StateFileExists = true
	info.LastUpdate = &mtime
	return info
}

// Write replaces the state file with services. The file is written to a
// temporary sibling and renamed so readers never observe a partial write.
func (s *Store) Write(services []status.Service) error {
	if services == nil {
		services = []status.Service{}
	}

	body, err := json.MarshalIndent(services, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp state file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replace state file %s", s.path)
	}
	return nil
}

func (s *Store) synthetic(state, message string) []status.Service {
	return []status.Service{{
		Name:             SystemName,
		Status:           state,
		LastError:        message,
		RestartsLastHour: 0,
		LastChecked:      s.now().Format(status.CheckedLayout),
	}}
}
