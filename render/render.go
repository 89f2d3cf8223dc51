// Package render serializes a composed document to PDF bytes.
//
// Pages are drawn with absolute positions taken from the layout; gofpdf's own
// flow and page breaking are switched off. Output is deterministic: the
// catalog is sorted and the creation date is the document's generation time,
// so the same Document always yields the same bytes.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/layout"
)

// Serialize renders doc and returns the PDF bytes.
func Serialize(doc *compose.Document, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders doc as a PDF to w.
func Write(w io.Writer, doc *compose.Document, opts ...Option) error {
	if doc == nil || len(doc.Pages) == 0 {
		return fmt.Errorf("render: document has no pages")
	}
	cfg := config{compress: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	geo := doc.Geometry
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: geo.Width, Ht: geo.Height},
	})
	pdf.SetMargins(geo.Margins.Left, geo.Margins.Top, geo.Margins.Right)
	pdf.SetAutoPageBreak(false, geo.Margins.Bottom)
	pdf.SetCompression(cfg.compress)
	pdf.SetCatalogSort(true)
	if !doc.Meta.Generated.IsZero() {
		pdf.SetCreationDate(doc.Meta.Generated)
		pdf.SetModificationDate(doc.Meta.Generated)
	}

	meta := doc.Meta
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	if meta.Creator != "" {
		pdf.SetCreator(meta.Creator, true)
	}

	var lh *letterhead
	if cfg.letterhead != "" {
		var err error
		if lh, err = importLetterhead(pdf, cfg.letterhead); err != nil {
			return err
		}
	}

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), geo: geo}
	for _, page := range doc.Pages {
		pdf.AddPage()
		if lh != nil {
			lh.draw(pdf, geo)
		}
		for i, p := range page.Blocks {
			if err := r.block(p); err != nil {
				return fmt.Errorf("render: page %d block %d: %w", page.Number, i+1, err)
			}
		}
		r.footer(page.Footer)
		if page.Watermark != "" {
			r.watermark(page.Watermark)
		}
	}

	if pdf.Err() {
		return fmt.Errorf("render: %w", pdf.Error())
	}
	return pdf.Output(w)
}

type renderer struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	geo layout.Geometry
}

func (r *renderer) block(p layout.Placed) error {
	switch b := p.Block.(type) {
	case layout.Heading:
		r.lines(p, p.X, p.Width, b.Style)
	case layout.Paragraph:
		if b.Marker == "" {
			r.lines(p, p.X, p.Width, b.Style)
			break
		}
		r.setFont(p.Font, b.Style.Color)
		r.pdf.SetXY(p.X, p.Y)
		r.pdf.CellFormat(layout.MarkerGutter, p.LineHeight, r.tr(b.Marker), "", 0, "L", false, 0, "")
		r.lines(p, p.X+layout.MarkerGutter, p.Width-layout.MarkerGutter, b.Style)
	case layout.RawText:
		r.lines(p, p.X, p.Width, b.Style)
	case layout.Rule:
		r.rule(p, b)
	case layout.Image:
		return r.image(p, b)
	case layout.Banner:
		r.banner(p, b)
	default:
		return fmt.Errorf("unknown block kind %v", p.Block.Kind())
	}
	return nil
}

func (r *renderer) setFont(f layout.Font, c layout.Color) {
	r.pdf.SetFont(f.Family, f.Style, f.Size)
	r.pdf.SetTextColor(c.R, c.G, c.B)
}

// lines draws the wrapped lines of a text block, one cell per line.
func (r *renderer) lines(p layout.Placed, x, width float64, st layout.Style) {
	r.setFont(p.Font, st.Color)
	align := "L"
	if st.Align != "" {
		align = strings.ToUpper(st.Align)
	}
	for i, line := range p.Lines {
		r.pdf.SetXY(x, p.Y+float64(i)*p.LineHeight)
		r.pdf.CellFormat(width, p.LineHeight, r.tr(line), "", 0, align, false, 0, "")
	}
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *renderer) rule(p layout.Placed, b layout.Rule) {
	lw := b.Thickness
	if lw == 0 {
		lw = 0.3
	}
	r.pdf.SetLineWidth(lw)
	r.pdf.SetDrawColor(b.Color.R, b.Color.G, b.Color.B)
	y := p.Y + p.Height/2
	r.pdf.Line(p.X, y, p.X+p.Width, y)
	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetLineWidth(0.2)
}

func (r *renderer) image(p layout.Placed, b layout.Image) error {
	if len(b.Data) == 0 {
		return fmt.Errorf("image %q has no data", b.Name)
	}
	opt := gofpdf.ImageOptions{ImageType: b.Type}
	r.pdf.RegisterImageOptionsReader(b.Name, opt, bytes.NewReader(b.Data))
	if r.pdf.Err() {
		return fmt.Errorf("image %q: %w", b.Name, r.pdf.Error())
	}
	r.pdf.ImageOptions(b.Name, p.X, p.Y, p.Width, p.Height, false, opt, 0, "")
	return nil
}

// bannerSteps is the number of bands the banner gradient is drawn with.
const bannerSteps = 15

func (r *renderer) banner(p layout.Placed, b layout.Banner) {
	step := p.Height / bannerSteps
	for i := 0; i < bannerSteps; i++ {
		t := float64(i) / (bannerSteps - 1)
		r.pdf.SetFillColor(mix(b.From.R, b.To.R, t), mix(b.From.G, b.To.G, t), mix(b.From.B, b.To.B, t))
		r.pdf.Rect(p.X, p.Y+float64(i)*step, p.Width, step, "F")
	}

	r.pdf.SetTextColor(255, 255, 255)
	r.pdf.SetFont("Helvetica", "B", 20)
	r.pdf.SetXY(p.X, p.Y+p.Height*0.2)
	r.pdf.CellFormat(p.Width, 10, r.tr(b.Title), "", 0, "C", false, 0, "")
	if b.Subtitle != "" {
		r.pdf.SetFont("Helvetica", "", 10)
		r.pdf.SetXY(p.X, p.Y+p.Height*0.6)
		r.pdf.CellFormat(p.Width, 6, r.tr(b.Subtitle), "", 0, "C", false, 0, "")
	}
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFillColor(255, 255, 255)
}

func mix(from, to int, t float64) int {
	return from + int(float64(to-from)*t+0.5)
}

// footerHeight is the height of the band drawn at the bottom of every page.
const footerHeight = 12

func (r *renderer) footer(f compose.Footer) {
	y := r.geo.Height - footerHeight
	r.pdf.SetFillColor(248, 250, 252)
	r.pdf.Rect(0, y, r.geo.Width, footerHeight, "F")
	r.pdf.SetDrawColor(226, 232, 240)
	r.pdf.SetLineWidth(0.2)
	r.pdf.Line(0, y, r.geo.Width, y)
	r.pdf.SetDrawColor(0, 0, 0)

	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.SetTextColor(107, 114, 128)
	w := r.geo.ContentWidth()
	if f.Label != "" {
		r.pdf.SetXY(r.geo.Margins.Left, y+3)
		r.pdf.CellFormat(w, 6, r.tr(f.Label), "", 0, "C", false, 0, "")
	}
	r.pdf.SetXY(r.geo.Margins.Left, y+3)
	r.pdf.CellFormat(w, 6, r.tr(f.Text), "", 0, "R", false, 0, "")
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFillColor(255, 255, 255)
}

// watermark draws text rotated 45 degrees across the page centre.
func (r *renderer) watermark(text string) {
	const size = 60
	r.pdf.SetFont("Helvetica", "B", size)
	r.pdf.SetTextColor(200, 200, 200)
	r.pdf.SetAlpha(0.3, "Normal")

	text = r.tr(text)
	textW := r.pdf.GetStringWidth(text)
	cx := r.geo.Width / 2
	cy := r.geo.Height / 2

	r.pdf.TransformBegin()
	r.pdf.TransformRotate(45, cx, cy)
	r.pdf.Text(cx-textW/2, cy+size*layout.PointToMM/3, text)
	r.pdf.TransformEnd()

	r.pdf.SetAlpha(1.0, "Normal")
	r.pdf.SetTextColor(0, 0, 0)
}
