package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
)

// FormatTimeRel returns a relative time string (e.g., "2m ago", "3h ago")
func FormatTimeRel(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// truncate clips s to maxWidth cells with an ellipsis.
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}

// padLeft right-aligns s in width cells.
func padLeft(s string, width int) string {
	return runewidth.FillLeft(truncate(s, width), width)
}

// badgeText renders a nullable delta as it appears in a badge cell.
func badgeText(d *float64) string {
	if d == nil {
		return "–"
	}
	return analysis.FormatDelta(*d)
}

// badgeClass classifies a nullable delta; missing values are neutral.
func badgeClass(d *float64) analysis.BadgeClass {
	if d == nil {
		return analysis.BadgeNeutral
	}
	return analysis.Classify(*d)
}

// joinRanking renders a ranking as "Name +1.0, Name -2.0".
func joinRanking(r analysis.Ranking) string {
	if len(r) == 0 {
		return "–"
	}
	parts := make([]string, len(r))
	for i, p := range r {
		name := p.DisplayName
		if name == "" {
			name = p.PartitionID
		}
		parts[i] = name + " " + analysis.FormatDelta(p.Delta)
	}
	return strings.Join(parts, ", ")
}
