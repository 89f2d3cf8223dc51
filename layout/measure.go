package layout

import (
	"strings"
	"unicode/utf8"
)

// PointToMM converts a length in points to millimeters.
const PointToMM = 25.4 / 72

// Measurer reports the rendered width of a string in millimeters.
type Measurer interface {
	Width(text string, font Font) float64
}

// MeasurerFunc adapts a function to the Measurer interface.
type MeasurerFunc func(text string, font Font) float64

// Width calls f(text, font).
func (f MeasurerFunc) Width(text string, font Font) float64 { return f(text, font) }

// FixedAdvance returns a Measurer in which every rune is advance ems wide.
// It is deterministic and independent of font files, which makes it useful
// in tests.
func FixedAdvance(advance float64) Measurer {
	return MeasurerFunc(func(text string, font Font) float64 {
		return float64(utf8.RuneCountInString(text)) * font.Size * PointToMM * advance
	})
}

// Wrap breaks text into lines no wider than maxWidth using a greedy word fill.
//
// Newlines in text force a break; blank lines inside the text are kept as
// empty strings. Words are never split: a word wider than maxWidth is put on
// a line of its own. Joining the result with spaces yields the same word
// sequence as the input. Blank input yields no lines.
func Wrap(m Measurer, text string, font Font, maxWidth float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Trim(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if m.Width(candidate, font) <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		lines = append(lines, line)
	}
	return lines
}
