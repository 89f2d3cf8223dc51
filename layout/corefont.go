package layout

import (
	"sync"

	"github.com/jung-kurt/gofpdf"
)

// coreMeasurer measures text with the metrics of the PDF core fonts
// (Helvetica, Times, Courier), the same tables the renderer draws with.
type coreMeasurer struct {
	mu       sync.Mutex
	pdf      *gofpdf.Fpdf
	tr       func(string) string
	fallback Measurer
}

// NewCoreMeasurer returns a Measurer backed by gofpdf core font metrics.
// UTF-8 input is translated to cp1252 before measuring, as the renderer does.
// It is safe for concurrent use.
func NewCoreMeasurer() Measurer {
	pdf := gofpdf.New("P", "mm", "A4", "")
	return &coreMeasurer{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		fallback: FixedAdvance(0.55),
	}
}

func (m *coreMeasurer) Width(text string, font Font) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	family := font.Family
	if family == "" {
		family = "Helvetica"
	}
	m.pdf.SetFont(family, font.Style, font.Size)
	if m.pdf.Err() {
		// unknown family: keep measuring rather than report everything as zero-width
		m.pdf.ClearError()
		return m.fallback.Width(text, font)
	}
	return m.pdf.GetStringWidth(m.tr(text))
}
