// Package status holds the service health records served by the monitor
// backend and the fixed table that maps a raw status to a display tier.
package status

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Raw status values observed from the two backend variants.
const (
	StatusOK        = "OK"
	StatusWarning   = "WARNING"
	StatusError     = "ERROR"
	StatusCritical  = "CRITICAL"
	StatusWaiting   = "WAITING"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Tier is the presentation category derived from a raw status.
type Tier string

const (
	TierOK       Tier = "ok"
	TierWarning  Tier = "warning"
	TierError    Tier = "error"
	TierCritical Tier = "critical"
	TierUnknown  Tier = "waiting"
)

// Marker is the symbolic indicator shown next to a tier.
type Marker string

const (
	MarkerPositive Marker = "positive"
	MarkerCaution  Marker = "caution"
	MarkerNegative Marker = "negative"
	MarkerSevere   Marker = "severe"
	MarkerNeutral  Marker = "neutral"
)

var tiers = map[string]Tier{
	"ok":        TierOK,
	"healthy":   TierOK,
	"warning":   TierWarning,
	"degraded":  TierWarning,
	"error":     TierError,
	"unhealthy": TierError,
	"critical":  TierCritical,
}

var markers = map[Tier]Marker{
	TierOK:       MarkerPositive,
	TierWarning:  MarkerCaution,
	TierError:    MarkerNegative,
	TierCritical: MarkerSevere,
	TierUnknown:  MarkerNeutral,
}

var glyphs = map[Marker]string{
	MarkerPositive: "✅",
	MarkerCaution:  "⚠️",
	MarkerNegative: "❌",
	MarkerSevere:   "🚨",
	MarkerNeutral:  "⏳",
}

// Classify maps a raw status to its tier. Unrecognized values, including
// the empty string, fall through to TierUnknown.
func Classify(raw string) Tier {
	if t, ok := tiers[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return TierUnknown
}

// Marker returns the indicator for t.
func (t Tier) Marker() Marker {
	if m, ok := markers[t]; ok {
		return m
	}
	return MarkerNeutral
}

// Glyph returns the emoji drawn for m.
func (m Marker) Glyph() string {
	return glyphs[m]
}

// Service is one monitored service as reported by a single poll.
type Service struct {
	Name             string `json:"name"`
	Status           string `json:"status"`
	LastError        string `json:"last_error,omitempty"`
	RestartsLastHour int    `json:"restarts_last_hour"`
	LastChecked      string `json:"last_checked,omitempty"`
	Logs             string `json:"logs,omitempty"`
	Restarted        bool   `json:"restarted,omitempty"`
}

// Tier classifies s.Status.
func (s Service) Tier() Tier {
	return Classify(s.Status)
}

// Validate reports fields a well-behaved backend always fills. A failing
// record is still rendered.
func (s Service) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Status, validation.Required),
		validation.Field(&s.RestartsLastHour, validation.Min(0)),
	)
}

// SystemInfo is the metadata exposed by the monitor backend.
type SystemInfo struct {
	MonitorVersion  string   `json:"monitor_version"`
	StateFileExists bool     `json:"estado_file_exists"`
	LastUpdate      *float64 `json:"last_update"`
}
