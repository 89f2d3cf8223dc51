package layout

import "math"

// Margins defines page margins in millimeters.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Geometry is the page size and margins, in millimeters.
type Geometry struct {
	Width   float64
	Height  float64
	Margins Margins
}

// A4 returns a portrait A4 page with 20 mm margins.
func A4() Geometry {
	return Geometry{Width: 210, Height: 297, Margins: Margins{Top: 20, Right: 20, Bottom: 20, Left: 20}}
}

// Letter returns a portrait US Letter page with 20 mm margins.
func Letter() Geometry {
	return Geometry{Width: 215.9, Height: 279.4, Margins: Margins{Top: 20, Right: 20, Bottom: 20, Left: 20}}
}

// ContentWidth is the page width between the side margins.
func (g Geometry) ContentWidth() float64 {
	return g.Width - g.Margins.Left - g.Margins.Right
}

// UsableHeight is the page height between the top and bottom margins.
func (g Geometry) UsableHeight() float64 {
	return g.Height - g.Margins.Top - g.Margins.Bottom
}

// Limit is the lowest y a block may reach.
func (g Geometry) Limit() float64 {
	return g.Height - g.Margins.Bottom
}

// Cursor is the write position: a zero-based page index and a y offset from
// the top edge of that page.
type Cursor struct {
	Page int
	Y    float64
}

// Placed is a block with its resolved position and extent.
type Placed struct {
	Block      Block
	Lines      []string // wrapped lines for text blocks
	Font       Font     // resolved font for text blocks
	LineHeight float64
	X, Y       float64
	Width      float64
	Height     float64
	Overflow   bool // taller than a whole page; placed anyway
}

// Page is an ordered list of placed blocks.
type Page struct {
	Blocks []Placed
}

// Flow is the layout state threaded through Place calls.
type Flow struct {
	Pages  []Page
	Cursor Cursor
}

// PageCount returns the number of pages started so far.
func (f Flow) PageCount() int { return len(f.Pages) }

// Overflows returns the blocks that did not fit on a page of their own.
func (f Flow) Overflows() []Placed {
	var out []Placed
	for _, p := range f.Pages {
		for _, b := range p.Blocks {
			if b.Overflow {
				out = append(out, b)
			}
		}
	}
	return out
}

// MarkerGutter is the width reserved left of a paragraph for its marker.
const MarkerGutter = 5

// Heading font sizes by level: h1=24, h2=20, h3=16, h4=14, h5=12, h6=11.
var headingSizes = []float64{24, 20, 16, 14, 12, 11}

// Engine lays blocks out on pages of a fixed geometry.
type Engine struct {
	geo      Geometry
	measurer Measurer
	font     Font
	spacing  float64
	leading  float64
	gutter   float64
	rule     float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeometry sets the page size and margins.
func WithGeometry(g Geometry) Option {
	return func(e *Engine) { e.geo = g }
}

// WithFont sets the default body font.
func WithFont(f Font) Option {
	return func(e *Engine) { e.font = f }
}

// WithSpacing sets the vertical gap left after every block.
func WithSpacing(mm float64) Option {
	return func(e *Engine) { e.spacing = mm }
}

// WithLeading sets the line height as a multiple of the font size.
func WithLeading(factor float64) Option {
	return func(e *Engine) { e.leading = factor }
}

// New creates an Engine that measures text with m.
// Defaults: A4, Helvetica 10, 2 mm block spacing, leading 1.15.
func New(m Measurer, opts ...Option) *Engine {
	e := &Engine{
		geo:      A4(),
		measurer: m,
		font:     Font{Family: "Helvetica", Size: 10},
		spacing:  2,
		leading:  1.15,
		gutter:   MarkerGutter,
		rule:     0.3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Geometry returns the engine's page geometry.
func (e *Engine) Geometry() Geometry { return e.geo }

// Measurer returns the engine's text measurer.
func (e *Engine) Measurer() Measurer { return e.measurer }

// Start returns a Flow with one empty page and the cursor at y.
func (e *Engine) Start(y float64) Flow {
	return Flow{Pages: []Page{{}}, Cursor: Cursor{Page: 0, Y: y}}
}

// Break starts a new page and moves the cursor to its top margin.
func (e *Engine) Break(f Flow) Flow {
	pages := make([]Page, len(f.Pages), len(f.Pages)+1)
	copy(pages, f.Pages)
	f.Pages = append(pages, Page{})
	f.Cursor = Cursor{Page: len(f.Pages) - 1, Y: e.geo.Margins.Top}
	return f
}

// LineHeight returns the line height in millimeters for a font size in points.
func (e *Engine) LineHeight(size float64) float64 {
	return size * PointToMM * e.leading
}

// Measure resolves a block's lines, x offset, width and height without
// placing it.
func (e *Engine) Measure(b Block) Placed {
	st := b.style()
	p := Placed{
		Block: b,
		X:     e.geo.Margins.Left + st.Indent,
		Width: e.geo.ContentWidth() - st.Indent,
	}

	switch v := b.(type) {
	case Heading:
		font := e.HeadingFont(v)
		p.Font = font
		p.LineHeight = e.LineHeight(font.Size)
		p.Lines = Wrap(e.measurer, v.Text, font, p.Width)
		p.Height = float64(len(p.Lines)) * p.LineHeight
	case Paragraph:
		font := e.resolve(st.Font)
		textWidth := p.Width
		if v.Marker != "" {
			textWidth -= e.gutter
		}
		p.Font = font
		p.LineHeight = e.LineHeight(font.Size)
		p.Lines = Wrap(e.measurer, v.Text, font, textWidth)
		p.Height = float64(len(p.Lines)) * p.LineHeight
	case RawText:
		font := e.resolve(st.Font)
		p.Font = font
		p.LineHeight = e.LineHeight(font.Size)
		p.Lines = append([]string(nil), v.Lines...)
		p.Height = float64(len(p.Lines)) * p.LineHeight
	case Rule:
		if v.Length > 0 {
			p.Width = math.Min(v.Length, p.Width)
		}
		p.Height = math.Max(v.Thickness, e.rule)
	case Image:
		if v.Width > 0 {
			p.Width = v.Width
		}
		p.Height = v.Height
	case Banner:
		p.X = 0
		p.Width = e.geo.Width
		p.Height = v.Height
	}
	return p
}

// HeadingFont returns the font a heading is drawn with: the style font when
// it sets a size, otherwise the level default in bold.
func (e *Engine) HeadingFont(h Heading) Font {
	f := h.Style.Font
	if f.Size > 0 {
		if f.Family == "" {
			f.Family = e.font.Family
		}
		return f
	}
	level := h.Level
	if level < 1 {
		level = 1
	}
	if level > len(headingSizes) {
		level = len(headingSizes)
	}
	if f.Family == "" {
		f.Family = e.font.Family
	}
	if f.Style == "" {
		f.Style = "B"
	}
	f.Size = headingSizes[level-1]
	return f
}

// BodyFont returns the font a paragraph or raw text block is drawn with.
func (e *Engine) BodyFont(st Style) Font {
	return e.resolve(st.Font)
}

func (e *Engine) resolve(f Font) Font {
	if f.Family == "" {
		f.Family = e.font.Family
	}
	if f.Size <= 0 {
		f.Size = e.font.Size
	}
	return f
}

// Place appends b at the cursor and returns the updated Flow.
//
// If the block would cross the bottom margin and the current page already
// holds something, a new page is started first. A block that still does not
// fit is placed at the top anyway and marked as an overflow. The cursor then
// advances by the block height plus the block spacing.
func (e *Engine) Place(f Flow, b Block) Flow {
	if len(f.Pages) == 0 {
		f = e.Start(e.geo.Margins.Top)
	}
	p := e.Measure(b)
	limit := e.geo.Limit()

	if f.Cursor.Y+p.Height > limit && len(f.Pages[f.Cursor.Page].Blocks) > 0 {
		f = e.Break(f)
	}
	p.Y = f.Cursor.Y
	p.Overflow = p.Y+p.Height > limit

	f = f.appendPlaced(p)
	f.Cursor.Y += p.Height + e.spacing + b.style().After
	return f
}

// PlaceAll places blocks in order.
func (e *Engine) PlaceAll(f Flow, blocks ...Block) Flow {
	for _, b := range blocks {
		f = e.Place(f, b)
	}
	return f
}

// appendPlaced returns a copy of f with p added to the current page. The
// page and block slices are copied so f itself is left untouched.
func (f Flow) appendPlaced(p Placed) Flow {
	pages := make([]Page, len(f.Pages))
	copy(pages, f.Pages)
	cur := pages[f.Cursor.Page].Blocks
	blocks := make([]Placed, len(cur), len(cur)+1)
	copy(blocks, cur)
	pages[f.Cursor.Page].Blocks = append(blocks, p)
	f.Pages = pages
	return f
}
