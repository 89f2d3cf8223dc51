package render

import (
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"

	"github.com/lvillar/signdoc/layout"
)

// letterhead is an imported page used as a background template.
type letterhead struct {
	imp *gofpdi.Importer
	tpl int
}

// importLetterhead imports the first page of the PDF at path. The importer
// panics on malformed input; that is reported as an error.
func importLetterhead(pdf *gofpdf.Fpdf, path string) (lh *letterhead, err error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("render: letterhead: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			lh, err = nil, fmt.Errorf("render: letterhead %s: %v", path, r)
		}
	}()

	imp := gofpdi.NewImporter()
	lh = &letterhead{imp: imp, tpl: imp.ImportPage(pdf, path, 1, "/MediaBox")}
	if pdf.Err() {
		return nil, fmt.Errorf("render: letterhead %s: %w", path, pdf.Error())
	}
	return lh, nil
}

// draw stretches the template over the whole page.
func (lh *letterhead) draw(pdf *gofpdf.Fpdf, geo layout.Geometry) {
	lh.imp.UseImportedTemplate(pdf, lh.tpl, 0, 0, geo.Width, geo.Height)
}
