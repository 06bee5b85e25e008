package event

import (
	"fmt"
	"strings"
)

type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorIndigo Color = "indigo"
	ColorGray   Color = "gray"
)

// Colors lists every color in display order.
var Colors = []Color{
	ColorBlue, ColorGreen, ColorRed, ColorYellow,
	ColorPurple, ColorPink, ColorIndigo, ColorGray,
}

// Style is how a color is drawn by clients.
type Style struct {
	Background string `json:"background" yaml:"background"`
	Border     string `json:"border" yaml:"border"`
	Text       string `json:"text" yaml:"text"`
}

func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown color %q", s)
	}
	return c, nil
}

func (c Color) Valid() bool {
	_, ok := c.style()
	return ok
}

// Style returns the palette entry for c; unknown colors render gray.
func (c Color) Style() Style {
	s, ok := c.style()
	if !ok {
		s, _ = ColorGray.style()
	}
	return s
}

func (c Color) style() (Style, bool) {
	switch c {
	case ColorBlue:
		return Style{Background: "#DBEAFE", Border: "#3B82F6", Text: "#1E40AF"}, true
	case ColorGreen:
		return Style{Background: "#DCFCE7", Border: "#22C55E", Text: "#166534"}, true
	case ColorRed:
		return Style{Background: "#FEE2E2", Border: "#EF4444", Text: "#991B1B"}, true
	case ColorYellow:
		return Style{Background: "#FEF9C3", Border: "#EAB308", Text: "#854D0E"}, true
	case ColorPurple:
		return Style{Background: "#F3E8FF", Border: "#A855F7", Text: "#6B21A8"}, true
	case ColorPink:
		return Style{Background: "#FCE7F3", Border: "#EC4899", Text: "#9D174D"}, true
	case ColorIndigo:
		return Style{Background: "#E0E7FF", Border: "#6366F1", Text: "#3730A3"}, true
	case ColorGray:
		return Style{Background: "#F3F4F6", Border: "#6B7280", Text: "#1F2937"}, true
	}
	return Style{}, false
}
