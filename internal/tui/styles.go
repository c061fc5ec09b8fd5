package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/angeloszaimis/healthdash/internal/status"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

type styles struct {
	title, header, cell, placeholder, footer lipgloss.Style
	info, error, dialog, dialogError        lipgloss.Style
	tiers                                    map[status.Tier]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Bold(true).
			MarginBottom(1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)).
			Bold(true).
			Padding(0, 1),
		cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)).
			Padding(0, 1),
		placeholder: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)).
			Italic(true),
		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)).
			MarginTop(1),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaPurple)).
			Padding(0, 2),
		dialogError: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaRed)).
			Padding(0, 2),
		tiers: map[status.Tier]lipgloss.Style{
			status.TierOK:       lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen)),
			status.TierWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color(draculaYellow)),
			status.TierError:    lipgloss.NewStyle().Foreground(lipgloss.Color(draculaOrange)),
			status.TierCritical: lipgloss.NewStyle().Foreground(lipgloss.Color(draculaRed)).Bold(true),
			status.TierUnknown:  lipgloss.NewStyle().Foreground(lipgloss.Color(draculaComment)),
		},
	}
}

func (s styles) tier(t status.Tier) lipgloss.Style {
	if st, ok := s.tiers[t]; ok {
		return st
	}
	return s.tiers[status.TierUnknown]
}
