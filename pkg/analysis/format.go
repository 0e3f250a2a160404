package analysis

import "fmt"

// BadgeThreshold is the magnitude below which a delta renders as neutral.
const BadgeThreshold = 0.05

// BadgeClass categorizes a delta for display.
type BadgeClass string

const (
	BadgePositive BadgeClass = "positive"
	BadgeNegative BadgeClass = "negative"
	BadgeNeutral  BadgeClass = "neutral"
)

// Classify returns the badge class for d.
func Classify(d float64) BadgeClass {
	switch {
	case d > BadgeThreshold:
		return BadgePositive
	case d < -BadgeThreshold:
		return BadgeNegative
	default:
		return BadgeNeutral
	}
}

// FormatDelta renders d with an explicit sign and one decimal, e.g. "+5.0"
// or "-2.0". Zero renders as "+0.0".
func FormatDelta(d float64) string {
	if d == 0 {
		d = 0 // normalize -0
	}
	return fmt.Sprintf("%+.1f", d)
}
