package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by every console view.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // headers, failures
	coralPink   = lipgloss.Color("#FFCCCB") // goals
	mintGreen   = lipgloss.Color("#A8E6CF") // tool names, success
	mutedGray   = lipgloss.Color("#6B7280") // thoughts, secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // observations
	amber       = lipgloss.Color("#FCD34D") // dry runs, warnings
)

// styles are bound to one renderer so color detection follows the writer,
// not the process's stdout.
type styles struct {
	header      lipgloss.Style
	goal        lipgloss.Style
	thought     lipgloss.Style
	tool        lipgloss.Style
	observation lipgloss.Style
	success     lipgloss.Style
	failure     lipgloss.Style
	warning     lipgloss.Style
	muted       lipgloss.Style
	card        lipgloss.Style
	failedCard  lipgloss.Style
	dryRunCard  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	card := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mintGreen).
		Padding(0, 1).
		Width(cardWidth)

	return styles{
		header:      r.NewStyle().Foreground(salmonPink).Bold(true),
		goal:        r.NewStyle().Foreground(coralPink).Bold(true),
		thought:     r.NewStyle().Foreground(mutedGray).Italic(true),
		tool:        r.NewStyle().Foreground(mintGreen).Bold(true),
		observation: r.NewStyle().Foreground(brightWhite),
		success:     r.NewStyle().Foreground(mintGreen).Bold(true),
		failure:     r.NewStyle().Foreground(salmonPink).Bold(true),
		warning:     r.NewStyle().Foreground(amber),
		muted:       r.NewStyle().Foreground(mutedGray),
		card:        card,
		failedCard:  card.BorderForeground(salmonPink),
		dryRunCard:  card.BorderForeground(amber),
	}
}
