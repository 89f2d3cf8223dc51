package agreement

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Bullet is the marker used for unordered list items.
const Bullet = "•"

// TextBlock is one paragraph or list item of section content with markup removed.
type TextBlock struct {
	Text   string // whitespace-normalized text
	Marker string // "" for paragraphs, Bullet or "N." for list items
}

// IsItem reports whether the block came from a list item.
func (b TextBlock) IsItem() bool { return b.Marker != "" }

type listState struct {
	ordered bool
	n       int
}

// Blocks splits markup into paragraphs and list items. Line breaks, paragraph
// and list boundaries end a block; inline emphasis is dropped.
func Blocks(markup string) []TextBlock {
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		blocks []TextBlock
		lists  []listState
		cur    strings.Builder
		marker string
	)
	flush := func() {
		text := strings.Join(strings.Fields(cur.String()), " ")
		if text != "" {
			blocks = append(blocks, TextBlock{Text: text, Marker: marker})
		}
		cur.Reset()
		marker = ""
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the text so far is kept
			flush()
			return blocks
		case html.TextToken:
			cur.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br", "p", "div":
				flush()
			case "ul", "ol":
				flush()
				lists = append(lists, listState{ordered: string(name) == "ol"})
			case "li":
				flush()
				marker = Bullet
				if n := len(lists); n > 0 && lists[n-1].ordered {
					lists[n-1].n++
					marker = strconv.Itoa(lists[n-1].n) + "."
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "li", "p", "div":
				flush()
			case "ul", "ol":
				flush()
				if n := len(lists); n > 0 {
					lists = lists[:n-1]
				}
			}
		}
	}
}

// StripMarkup returns the plain text of markup with blocks joined by newlines.
func StripMarkup(markup string) string {
	var b strings.Builder
	for i, blk := range Blocks(markup) {
		if i > 0 {
			b.WriteString("\n")
		}
		if blk.Marker != "" {
			b.WriteString(blk.Marker)
			b.WriteString(" ")
		}
		b.WriteString(blk.Text)
	}
	return b.String()
}
