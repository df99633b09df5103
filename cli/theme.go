package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette is the small set of colours hop's help and error output uses.
type Palette struct {
	Red    lipgloss.AdaptiveColor
	Orange lipgloss.AdaptiveColor
	Yellow lipgloss.AdaptiveColor
	Green  lipgloss.AdaptiveColor
	Blue   lipgloss.AdaptiveColor
	Cyan   lipgloss.AdaptiveColor
	Violet lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
}

// Kanagawa colours, dark variant first.
var palette = Palette{
	Red:    lipgloss.AdaptiveColor{Dark: "#FF5D62", Light: "#C34043"},
	Orange: lipgloss.AdaptiveColor{Dark: "#FFA066", Light: "#CC6B4E"},
	Yellow: lipgloss.AdaptiveColor{Dark: "#FF9E3B", Light: "#A68A64"},
	Green:  lipgloss.AdaptiveColor{Dark: "#98BB6C", Light: "#4E7C5A"},
	Blue:   lipgloss.AdaptiveColor{Dark: "#7FB4CA", Light: "#4F7CAC"},
	Cyan:   lipgloss.AdaptiveColor{Dark: "#7E9CD8", Light: "#5B8BBE"},
	Violet: lipgloss.AdaptiveColor{Dark: "#957FB8", Light: "#674D7A"},
	Muted:  lipgloss.AdaptiveColor{Dark: "#727169", Light: "#6C7086"},
}

func style(c lipgloss.AdaptiveColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	mutedStyle  = style(palette.Muted)
	italicStyle = lipgloss.NewStyle().Italic(true)
)

// InitializeTerminal picks the colour profile for help and error output.
// NO_COLOR disables colour; CLICOLOR_FORCE=1 or COLORTERM=truecolor force
// it on for pipes and CI.
func InitializeTerminal() {
	switch {
	case os.Getenv("NO_COLOR") != "":
		lipgloss.SetColorProfile(termenv.Ascii)
	case os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor":
		lipgloss.SetColorProfile(termenv.TrueColor)
	default:
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}
