// Package layout places content blocks on fixed-size pages.
//
// A Flow holds the pages laid out so far and a Cursor into the current page.
// Engine.Place returns a new Flow with the block appended, starting a fresh
// page first when the block would cross the bottom margin. Flows are values:
// placing into one never changes another, so callers may keep earlier Flows
// around (for tests, or to try alternatives) without copying.
//
// Text blocks are wrapped by Wrap using a Measurer. The engine never splits a
// block across pages; a block taller than a whole page is placed at the top of
// a fresh page and flagged as an overflow.
package layout

// Kind identifies the concrete type of a Block.
type Kind int

const (
	KindHeading Kind = iota
	KindParagraph
	KindRule
	KindImage
	KindRawText
	KindBanner
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindRule:
		return "rule"
	case KindImage:
		return "image"
	case KindRawText:
		return "raw"
	case KindBanner:
		return "banner"
	}
	return "unknown"
}

// Block is a unit of placement. The set of implementations is closed; the
// engine and the renderer switch over all of them.
type Block interface {
	Kind() Kind
	style() Style
}

// Font specifies a font face. Size is in points.
type Font struct {
	Family string // Helvetica, Courier, Times
	Style  string // "" (regular), "B", "I", "BI"
	Size   float64
}

// Color is an RGB color.
type Color struct {
	R, G, B int
}

// Style holds presentation attributes shared by block kinds.
// Zero values fall back to engine defaults.
type Style struct {
	Font   Font
	Color  Color
	Indent float64 // added to the left margin
	Align  string  // L, C, R (default: L)
	After  float64 // extra space below the block, on top of the engine spacing
}

// Heading is a bold title line. Level runs from 1 (largest) to 6.
type Heading struct {
	Text  string
	Level int
	Style Style
}

// Paragraph is wrapped body text. A non-empty Marker (bullet or number) is
// drawn in a gutter to the left of the first line and the text is indented.
type Paragraph struct {
	Text   string
	Marker string
	Style  Style
}

// Rule is a horizontal line. A zero Length spans the content width.
type Rule struct {
	Length    float64
	Thickness float64
	Color     Color
	Style     Style
}

// Image is an embedded raster. Data holds PNG or JPEG bytes; Name must be
// unique within a document.
type Image struct {
	Name   string
	Data   []byte
	Type   string // PNG, JPG
	Width  float64
	Height float64
	Style  Style
}

// RawText is preformatted text; each line is drawn as-is without wrapping.
type RawText struct {
	Lines []string
	Style Style
}

// Banner is a full-bleed coloured band with a centred title and subtitle.
// The fill fades from From to To top to bottom.
type Banner struct {
	Title    string
	Subtitle string
	Height   float64
	From, To Color
	Style    Style
}

func (Heading) Kind() Kind   { return KindHeading }
func (Paragraph) Kind() Kind { return KindParagraph }
func (Rule) Kind() Kind      { return KindRule }
func (Image) Kind() Kind     { return KindImage }
func (RawText) Kind() Kind   { return KindRawText }
func (Banner) Kind() Kind    { return KindBanner }

func (b Heading) style() Style   { return b.Style }
func (b Paragraph) style() Style { return b.Style }
func (b Rule) style() Style      { return b.Style }
func (b Image) style() Style     { return b.Style }
func (b RawText) style() Style   { return b.Style }
func (b Banner) style() Style    { return b.Style }

// Text returns the textual content of a block, one entry per source string.
// Rules and images have none.
func Text(b Block) []string {
	switch v := b.(type) {
	case Heading:
		return []string{v.Text}
	case Paragraph:
		return []string{v.Text}
	case RawText:
		return v.Lines
	case Banner:
		return []string{v.Title, v.Subtitle}
	}
	return nil
}
