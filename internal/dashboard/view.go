package dashboard

import (
	"github.com/angeloszaimis/healthdash/internal/status"
)

// Placeholders drawn instead of absent values.
const (
	PlaceholderName    = "(unnamed)"
	PlaceholderStatus  = "UNKNOWN"
	PlaceholderError   = "—"
	PlaceholderChecked = "N/A"
	PlaceholderLogs    = "no logs"
	NoDataMessage      = "no data available"
)

// Row is one rendered service.
type Row struct {
	Name        string
	Status      string
	Tier        status.Tier
	Marker      status.Marker
	Glyph       string
	Error       string
	Restarts    int
	LastChecked string
	Logs        string
	Restarted   bool
}

// View is the rendered status container. Exactly one of Rows and
// Placeholder is non-empty once something has been rendered.
type View struct {
	Rows        []Row
	Placeholder string
}

// Empty reports whether the view shows the no-data placeholder.
func (v View) Empty() bool {
	return len(v.Rows) == 0
}

// BuildView turns a poll result into a fresh view. It never fails: unknown
// statuses get the neutral tier and absent fields get placeholders.
func BuildView(services []status.Service) View {
	if len(services) == 0 {
		return View{Placeholder: NoDataMessage}
	}

	rows := make([]Row, 0, len(services))
	for _, s := range services {
		rows = append(rows, NewRow(s))
	}
	return View{Rows: rows}
}

// NewRow maps one service to its display row.
func NewRow(s status.Service) Row {
	tier := s.Tier()
	marker := tier.Marker()

	return Row{
		Name:        orPlaceholder(s.Name, PlaceholderName),
		Status:      orPlaceholder(s.Status, PlaceholderStatus),
		Tier:        tier,
		Marker:      marker,
		Glyph:       marker.Glyph(),
		Error:       orPlaceholder(s.LastError, PlaceholderError),
		Restarts:    s.RestartsLastHour,
		LastChecked: orPlaceholder(s.LastChecked, PlaceholderChecked),
		Logs:        orPlaceholder(s.Logs, PlaceholderLogs),
		Restarted:   s.Restarted,
	}
}

func orPlaceholder(v, placeholder string) string {
	if v == "" {
		return placeholder
	}
	return v
}

func (v View) clone() View {
	out := View{Placeholder: v.Placeholder}
	if v.Rows != nil {
		out.Rows = make([]Row, len(v.Rows))
		copy(out.Rows, v.Rows)
	}
	return out
}
