package format

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/text"
)

// Color names a terminal highlight.
type Color int

const (
	NoColor Color = iota
	Green
	Yellow
	Red
	Bold
)

var palette = map[Color]text.Colors{
	Green:  {text.BgGreen},
	Yellow: {text.FgYellow},
	Red:    {text.FgRed},
	Bold:   {text.Bold},
}

// Paint wraps s in the escape sequences for c.
func Paint(s string, c Color) string {
	colors, ok := palette[c]
	if !ok {
		return s
	}
	return colors.Sprint(s)
}

// Percent formats a ratio in [0,1] as a whole percentage. Negative ratios
// mean "no data" and render as N/A.
func Percent(ratio float64) string {
	if ratio < 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100)))
}

// RatioColor picks green for 1, yellow above 0.8 and red otherwise.
func RatioColor(ratio float64) Color {
	switch {
	case ratio == 1:
		return Green
	case ratio > 0.8:
		return Yellow
	}
	return Red
}
