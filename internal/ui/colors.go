package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/jukebox/internal/models"
)

// Colors names the foreground color of each [Palette] role.
type Colors struct {
	Title string
	OK    string
	Err   string
	Warn  string
	Help  string
}

// Styles is the palette the CLI prints with.
var Styles = NewPalette(Colors{
	Title: "#7D56F4",
	OK:    "#04B575",
	Err:   "#FF0000",
	Warn:  "#FFA500",
	Help:  "#626262",
})

// Palette renders CLI status text in role colors.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette builds a Palette; titles and OK/Err lines are bold, help text italic.
func NewPalette(c Colors) *Palette {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	return &Palette{
		title: fg(c.Title).Bold(true).MarginBottom(1),
		ok:    fg(c.OK).Bold(true),
		err:   fg(c.Err).Bold(true),
		warn:  fg(c.Warn),
		help:  fg(c.Help).Italic(true),
	}
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

// Status renders a job status: completed as OK, failed as Err, anything in flight as Warn.
func (p *Palette) Status(s models.JobStatus) string {
	switch s {
	case models.JobCompleted:
		return p.OK(string(s))
	case models.JobFailed:
		return p.Err(string(s))
	default:
		return p.Warn(string(s))
	}
}
