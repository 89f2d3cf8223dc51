// Package compose assembles a signed agreement document.
//
// A Composer folds a fixed list of stages over a layout.Flow: header, client
// information, agreement body, optional notes and the signature block. Once
// every block is placed and the page count is known, a second pass stamps the
// "Page i of N" footer (and an optional watermark) onto each page.
package compose

import (
	"time"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/layout"
)

// Brand holds the names printed in the banner, footer and document metadata.
type Brand struct {
	Name        string // party offering the agreement
	Banner      string // banner title
	FooterLabel string // centred footer text
	Title       string // PDF metadata
	Subject     string
	Author      string
	Creator     string
}

// DefaultBrand returns the branding of the compiled-in agreement.
func DefaultBrand() Brand {
	return Brand{
		Name:        "Rapid Web Development",
		Banner:      "WEB DEVELOPMENT AGREEMENT",
		FooterLabel: "Rapid Web Development - Web Development Agreement",
		Title:       "Professional Service Agreement",
		Subject:     "Contract Agreement",
		Author:      "Professional Contract Service",
		Creator:     "Contract Signing App",
	}
}

// Seal is a verification mark printed under the signature.
type Seal struct {
	Image   []byte // PNG
	Caption string
	Width   float64 // mm; zero means 25
	Height  float64 // mm; zero means Width
}

// Stamper produces the verification seal for a submission.
type Stamper interface {
	Seal(sub signdoc.Submission, at time.Time) (Seal, error)
}

// Footer is the per-page annotation written in the second pass.
type Footer struct {
	Label string
	Text  string // "Page i of N"
}

// Page is a finalized page: its placed blocks plus the stamped annotations.
type Page struct {
	Number    int // 1-based
	Blocks    []layout.Placed
	Footer    Footer
	Watermark string
}

// Meta is document-level metadata.
type Meta struct {
	Title     string
	Subject   string
	Author    string
	Creator   string
	Generated time.Time
}

// Document is the composed, paginated agreement. It is not modified after
// Compose returns it.
type Document struct {
	Geometry layout.Geometry
	Pages    []Page
	Meta     Meta
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// Input is what every stage reads.
type Input struct {
	Submission signdoc.Submission
	Agreement  *agreement.Agreement
	At         time.Time
}

// StageFunc places the blocks of one stage and returns the advanced flow.
type StageFunc func(in Input, f layout.Flow) (layout.Flow, error)

// Stage is one named step of the build.
type Stage struct {
	Name string
	Skip func(in Input) bool // nil means never skipped
	Run  StageFunc
}

// Stage names, in build order.
const (
	StageHeader     = "header"
	StageClientInfo = "client_info"
	StageBody       = "agreement_body"
	StageNotes      = "notes"
	StageSignature  = "signature"
)

// Composer builds Documents. It holds no per-build state and may be shared.
type Composer struct {
	engine     *layout.Engine
	agreement  *agreement.Agreement
	brand      Brand
	stamper    Stamper
	watermark  string
	dateFormat string
}

// New creates a Composer. Without options it lays out the compiled-in
// agreement on A4 pages using core font metrics.
func New(opts ...Option) *Composer {
	cfg := &config{
		geometry:   layout.A4(),
		agreement:  agreement.Default(),
		brand:      DefaultBrand(),
		dateFormat: "January 2, 2006",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.measurer == nil {
		cfg.measurer = layout.NewCoreMeasurer()
	}
	return &Composer{
		engine:     layout.New(cfg.measurer, layout.WithGeometry(cfg.geometry)),
		agreement:  cfg.agreement,
		brand:      cfg.brand,
		stamper:    cfg.stamper,
		watermark:  cfg.watermark,
		dateFormat: cfg.dateFormat,
	}
}

// Engine returns the layout engine the composer places blocks with.
func (c *Composer) Engine() *layout.Engine { return c.engine }

// Agreement returns the agreement text the composer prints.
func (c *Composer) Agreement() *agreement.Agreement { return c.agreement }

// Brand returns the configured branding.
func (c *Composer) Brand() Brand { return c.brand }

// Stages returns the build stages in their fixed order.
func (c *Composer) Stages() []Stage {
	return []Stage{
		{Name: StageHeader, Run: c.header},
		{Name: StageClientInfo, Run: c.clientInfo},
		{Name: StageBody, Run: c.body},
		{Name: StageNotes, Run: c.notes, Skip: func(in Input) bool { return !in.Submission.HasNotes() }},
		{Name: StageSignature, Run: c.signature},
	}
}

// Compose lays out sub against the agreement and stamps footers.
// at is printed as the generation and signing date; passing the same value
// for the same submission yields the same Document.
//
// A stage failure is returned as a *signdoc.StageError and no Document is
// produced.
func (c *Composer) Compose(sub signdoc.Submission, at time.Time) (*Document, error) {
	in := Input{Submission: sub, Agreement: c.agreement, At: at}

	// The banner is full-bleed, so the first page starts at the top edge.
	f := c.engine.Start(0)
	for _, st := range c.Stages() {
		if st.Skip != nil && st.Skip(in) {
			continue
		}
		var err error
		if f, err = st.Run(in, f); err != nil {
			return nil, signdoc.NewStageError(st.Name, err)
		}
	}

	return &Document{
		Geometry: c.engine.Geometry(),
		Pages:    Finalize(f, c.brand.FooterLabel, c.watermark),
		Meta: Meta{
			Title:     c.brand.Title,
			Subject:   c.brand.Subject,
			Author:    c.brand.Author,
			Creator:   c.brand.Creator,
			Generated: at,
		},
	}, nil
}

func (c *Composer) date(t time.Time) string {
	return t.Format(c.dateFormat)
}
