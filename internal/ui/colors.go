package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/posterctl/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette holds the named styles of the poster views
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style

	// tag styles per tracking channel
	streamTag  lipgloss.Style
	pollingTag lipgloss.Style
}

func NewPalette(title, ok, err, warn, help string) *Palette {
	return &Palette{
		title:      NewBold(title).MarginBottom(1),
		ok:         NewBold(ok),
		err:        NewBold(err),
		warn:       NewStyle(warn),
		help:       NewEm(help),
		streamTag:  NewTag(title),
		pollingTag: NewTag(warn),
	}
}

// Tag renders the tracking mode label.
func (p *Palette) Tag(mode tasks.TrackingMode) string {
	style := p.streamTag
	if mode == tasks.ModePolling {
		style = p.pollingTag
	}
	return style.Render(strings.ToUpper(string(mode)))
}

// Done and Pending are the step checklist markers; the active step uses the spinner.
func (p *Palette) Done() string    { return p.ok.Render("✓") }
func (p *Palette) Pending() string { return p.help.Render("·") }

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func NewTag(bg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color(bg)).Padding(0, 1)
}
