package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
)

// TermProfile holds the detected terminal color profile.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and ANSI
// white for anything less.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// ThemeBg returns the given hex color on TrueColor terminals and no color
// otherwise, so low-color terminals keep their own background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary  lipgloss.AdaptiveColor
	Subtext  lipgloss.AdaptiveColor
	Positive lipgloss.AdaptiveColor
	Negative lipgloss.AdaptiveColor
	Neutral  lipgloss.AdaptiveColor
	Border   lipgloss.AdaptiveColor
	Muted    lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Column   lipgloss.Style
	Panel    lipgloss.Style

	// Created once instead of per frame.
	MutedText    lipgloss.Style
	ErrorText    lipgloss.Style
	StatusText   lipgloss.Style
	PositiveText lipgloss.Style
	NegativeText lipgloss.Style
	NeutralText  lipgloss.Style
	SortActive   lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:  ColorPrimary,
		Subtext:  ColorSubtext,
		Positive: ColorSuccess,
		Negative: ColorDanger,
		Neutral:  ColorMuted,
		Border:   ColorBorder,
		Muted:    ColorMuted,
	}

	t.Base = r.NewStyle().Foreground(ColorText)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Selected = r.NewStyle().
		Background(ColorBgHighlight).
		Bold(true)

	t.Column = r.NewStyle().
		Foreground(t.Subtext).
		Bold(true)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.ErrorText = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.StatusText = r.NewStyle().Foreground(ColorInfo)
	t.PositiveText = r.NewStyle().Foreground(t.Positive)
	t.NegativeText = r.NewStyle().Foreground(t.Negative)
	t.NeutralText = r.NewStyle().Foreground(t.Neutral)
	t.SortActive = r.NewStyle().Foreground(ThemeFg("#FFD700")).Bold(true)

	return t
}

// BadgeColor maps a badge class to its foreground color.
func (t Theme) BadgeColor(c analysis.BadgeClass) lipgloss.AdaptiveColor {
	switch c {
	case analysis.BadgePositive:
		return t.Positive
	case analysis.BadgeNegative:
		return t.Negative
	default:
		return t.Neutral
	}
}

// BadgeStyle returns the pre-built style for a badge class.
func (t Theme) BadgeStyle(c analysis.BadgeClass) lipgloss.Style {
	switch c {
	case analysis.BadgePositive:
		return t.PositiveText
	case analysis.BadgeNegative:
		return t.NegativeText
	default:
		return t.NeutralText
	}
}

// TestTheme returns a theme for tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
