package compose

import (
	"fmt"

	"github.com/lvillar/signdoc/layout"
)

// PageLabel formats the footer page counter.
func PageLabel(page, total int) string {
	return fmt.Sprintf("Page %d of %d", page, total)
}

// Finalize turns a fully laid out flow into pages and stamps each one with
// its footer. It must run after the last block is placed: the footer text
// depends on the final page count.
func Finalize(f layout.Flow, label, watermark string) []Page {
	total := len(f.Pages)
	pages := make([]Page, total)
	for i, p := range f.Pages {
		pages[i] = Page{
			Number: i + 1,
			Blocks: append([]layout.Placed(nil), p.Blocks...),
			Footer: Footer{
				Label: label,
				Text:  PageLabel(i+1, total),
			},
			Watermark: watermark,
		}
	}
	return pages
}
