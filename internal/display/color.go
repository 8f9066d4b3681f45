// Package display provides terminal styling for the CLI, built on lipgloss.
//
// It respects the NO_COLOR environment variable (https://no-color.org/) and
// detects whether stdout is a terminal. Colors are automatically disabled when
// output is piped or redirected, or when NO_COLOR is set.
package display

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette uses the 16 basic ANSI colors so output follows the user's theme.
var (
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
	colorCyan   = lipgloss.Color("6")
	colorGray   = lipgloss.Color("8")
)

var (
	renderer = lipgloss.NewRenderer(os.Stdout)

	// enabled reports whether color output is active.
	// It is set once at init time.
	enabled bool

	boldStyle, dimStyle, greenStyle, yellowStyle, cyanStyle, grayStyle, accentStyle lipgloss.Style
)

func init() {
	SetEnabled(shouldEnable())
}

// shouldEnable determines whether to use color output.
func shouldEnable() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	// FORCE_COLOR is honoured for testing and pagers.
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	return isTerminal(os.Stdout)
}

// isTerminal reports whether f is connected to a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetEnabled overrides the auto-detected color state.
// Useful for testing or when --json forces plain output.
func SetEnabled(b bool) {
	enabled = b
	if b {
		renderer.SetColorProfile(termenv.ANSI)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}

	base := renderer.NewStyle()
	boldStyle = base.Bold(true)
	dimStyle = base.Faint(true)
	greenStyle = base.Foreground(colorGreen)
	yellowStyle = base.Foreground(colorYellow)
	cyanStyle = base.Foreground(colorCyan)
	grayStyle = base.Foreground(colorGray)
	accentStyle = base.Bold(true).Foreground(colorCyan)
}

// Enabled reports whether color output is currently active.
func Enabled() bool {
	return enabled
}

func render(s lipgloss.Style, text string) string {
	if !enabled || text == "" {
		return text
	}
	return s.Render(text)
}

// Bold returns text rendered in bold.
func Bold(text string) string {
	return render(boldStyle, text)
}

// Dim returns text rendered in dim/faint.
func Dim(text string) string {
	return render(dimStyle, text)
}

// Green returns text rendered in green.
func Green(text string) string {
	return render(greenStyle, text)
}

// Yellow returns text rendered in yellow.
func Yellow(text string) string {
	return render(yellowStyle, text)
}

// Cyan returns text rendered in cyan.
func Cyan(text string) string {
	return render(cyanStyle, text)
}

// Gray returns text rendered in gray (bright black).
func Gray(text string) string {
	return render(grayStyle, text)
}

// Accent returns text rendered in the accent color (cyan + bold).
// Used for the "next prayer" highlight.
func Accent(text string) string {
	return render(accentStyle, text)
}

// Boldf formats and bolds a string.
func Boldf(format string, a ...interface{}) string {
	return Bold(fmt.Sprintf(format, a...))
}

// Width returns the printable width of s, ignoring escape sequences.
func Width(s string) int {
	return lipgloss.Width(s)
}
