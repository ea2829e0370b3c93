package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/segx/internal/formatter"
)

var styles = NewPalette("#2563EB", "#16A34A", "#DC2626", "#EAB308", "#626262")

// interface Painter defines coloring text with [lipgloss] styles
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

var _ Painter = (*Palette)(nil)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	fill  lipgloss.Color
	track lipgloss.Color
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		fill:  lipgloss.Color(t),
		track: lipgloss.Color("#3F3F46"),
	}
}

func (p *Palette) On(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Background(c).Render(s)
}

func (p *Palette) As(s string, c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Bar draws a width-cell progress bar for pct in [0, 100].
func (p *Palette) Bar(pct, width int) string {
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return p.As(strings.Repeat("█", filled), p.fill) + p.As(strings.Repeat("░", width-filled), p.track)
}

// Legend renders the overlay classes with a color swatch each.
func (p *Palette) Legend() string {
	var b strings.Builder
	for _, e := range formatter.Legend {
		swatch := p.On("  ", lipgloss.Color(e.Color))
		line := fmt.Sprintf("%s %s", swatch, e.Label)
		if e.Description != "" {
			line += p.help.Render(" " + e.Description)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
