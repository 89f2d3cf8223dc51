package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/layout"
)

var signedAt = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.Set(x, 2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func janeDoe(t *testing.T) signdoc.Submission {
	return signdoc.Submission{
		FullName:        "Jane Doe",
		Email:           "jane@x.com",
		Phone:           "555-0100",
		SignatureMethod: signdoc.SignatureTyped,
		SignatureImage:  testPNG(t),
	}
}

func newTestComposer(opts ...Option) *Composer {
	return New(append([]Option{WithMeasurer(layout.FixedAdvance(0.5))}, opts...)...)
}

// headings returns the text of every heading block in document order.
func headings(doc *Document) []string {
	var out []string
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if h, ok := b.Block.(layout.Heading); ok {
				out = append(out, h.Text)
			}
		}
	}
	return out
}

func countHeading(doc *Document, text string) int {
	n := 0
	for _, h := range headings(doc) {
		if h == text {
			n++
		}
	}
	return n
}

func TestComposeJaneDoe(t *testing.T) {
	sub := janeDoe(t)
	doc, err := newTestComposer().Compose(sub, signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if doc.PageCount() < 1 {
		t.Fatal("document has no pages")
	}

	found := false
	for _, b := range doc.Pages[0].Blocks {
		if raw, ok := b.Block.(layout.RawText); ok && strings.Contains(strings.Join(raw.Lines, "\n"), "Full Name: Jane Doe") {
			found = true
		}
	}
	if !found {
		t.Error("page 1 has no client info block with the client's name")
	}

	if n := countHeading(doc, HeadingNotes); n != 0 {
		t.Errorf("expected no notes heading, found %d", n)
	}
	for _, b := range allBlocks(doc) {
		if raw, ok := b.Block.(layout.RawText); ok && strings.Contains(strings.Join(raw.Lines, "\n"), "Company/Entity") {
			t.Error("empty role should not be printed")
		}
	}

	var sig *layout.Image
	for _, b := range allBlocks(doc) {
		if img, ok := b.Block.(layout.Image); ok && img.Name == "signature" {
			sig = &img
		}
	}
	if sig == nil {
		t.Fatal("signature image not embedded")
	}
	if !bytes.Equal(sig.Data, sub.SignatureImage) || sig.Type != "PNG" {
		t.Error("embedded signature differs from the submitted image")
	}
}

func TestComposeSinglePageFooter(t *testing.T) {
	short := agreement.New("SHORT AGREEMENT", "Intro.", []agreement.Section{{Title: "1. ONLY", Content: "One clause."}})
	doc, err := newTestComposer(WithAgreement(short)).Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("expected the short agreement to fit one page, got %d", doc.PageCount())
	}
	if got := doc.Pages[0].Footer.Text; got != "Page 1 of 1" {
		t.Fatalf("footer = %q, want %q", got, "Page 1 of 1")
	}
	if doc.Pages[0].Footer.Label != DefaultBrand().FooterLabel {
		t.Errorf("footer label = %q", doc.Pages[0].Footer.Label)
	}
}

func TestComposeFootersNumberEveryPage(t *testing.T) {
	sub := janeDoe(t)
	sub.Notes = strings.Repeat("Please coordinate the delivery schedule with our operations team. ", 40)
	doc, err := newTestComposer().Compose(sub, signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	total := doc.PageCount()
	if total < 2 {
		t.Fatalf("expected a multi-page document, got %d page(s)", total)
	}
	for i, p := range doc.Pages {
		want := PageLabel(i+1, total)
		if p.Number != i+1 || p.Footer.Text != want {
			t.Errorf("page %d: number %d footer %q, want %q", i, p.Number, p.Footer.Text, want)
		}
	}
}

func TestComposeBodyEmitsEverySectionInOrder(t *testing.T) {
	c := newTestComposer()
	doc, err := c.Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	sections := c.Agreement().Sections()
	titles := make(map[string]bool, len(sections))
	for _, s := range sections {
		titles[s.Title] = true
	}

	var got []string
	for _, h := range headings(doc) {
		if titles[h] {
			got = append(got, h)
		}
	}
	if len(got) != len(sections) {
		t.Fatalf("rendered %d section titles, want %d", len(got), len(sections))
	}
	for i, s := range sections {
		if got[i] != s.Title {
			t.Errorf("section %d = %q, want %q", i, got[i], s.Title)
		}
	}
}

func TestComposeNotes(t *testing.T) {
	sub := janeDoe(t)
	sub.Notes = "Please expedite"
	doc, err := newTestComposer().Compose(sub, signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if n := countHeading(doc, HeadingNotes); n != 1 {
		t.Fatalf("expected exactly one notes heading, found %d", n)
	}

	hs := headings(doc)
	notesAt, sigAt, lastSection := -1, -1, -1
	lastTitle := agreement.Default().Sections()[9].Title
	for i, h := range hs {
		switch h {
		case HeadingNotes:
			notesAt = i
		case HeadingSignature:
			sigAt = i
		case lastTitle:
			lastSection = i
		}
	}
	if !(lastSection < notesAt && notesAt < sigAt) {
		t.Fatalf("notes not between body and signature: section=%d notes=%d signature=%d", lastSection, notesAt, sigAt)
	}

	blocks := allBlocks(doc)
	for i, b := range blocks {
		if h, ok := b.Block.(layout.Heading); ok && h.Text == HeadingNotes {
			// heading, rule, then the notes paragraph
			p, ok := blocks[i+2].Block.(layout.Paragraph)
			if !ok || p.Text != "Please expedite" {
				t.Fatalf("notes text not placed after heading: %#v", blocks[i+2].Block)
			}
		}
	}
}

func TestComposeWhitespaceNotesSkipped(t *testing.T) {
	sub := janeDoe(t)
	sub.Notes = "  \n "
	doc, err := newTestComposer().Compose(sub, signedAt)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if countHeading(doc, HeadingNotes) != 0 {
		t.Fatal("whitespace-only notes produced a notes section")
	}
}

func TestComposeMissingSignatureFallback(t *testing.T) {
	sub := janeDoe(t)
	sub.SignatureImage = nil
	doc, err := newTestComposer().Compose(sub, signedAt)
	if err != nil {
		t.Fatalf("missing signature must not fail: %v", err)
	}
	fallback := false
	for _, b := range allBlocks(doc) {
		if img, ok := b.Block.(layout.Image); ok && img.Name == "signature" {
			t.Fatal("unexpected signature image")
		}
		if p, ok := b.Block.(layout.Paragraph); ok && p.Text == NoSignatureText {
			fallback = true
		}
	}
	if !fallback {
		t.Fatal("fallback text not rendered")
	}
}

func TestComposeMissingFieldFails(t *testing.T) {
	sub := janeDoe(t)
	sub.FullName = ""
	doc, err := newTestComposer().Compose(sub, signedAt)
	if doc != nil {
		t.Fatal("partial document returned on failure")
	}
	var se *signdoc.StageError
	if !errors.As(err, &se) || se.Stage != StageClientInfo {
		t.Fatalf("expected client_info StageError, got %v", err)
	}
	if !errors.Is(err, signdoc.ErrMissingField) {
		t.Fatalf("error does not wrap ErrMissingField: %v", err)
	}
}

func TestComposeRejectsUnknownImageFormat(t *testing.T) {
	sub := janeDoe(t)
	sub.SignatureImage = []byte("GIF89a....")
	_, err := newTestComposer().Compose(sub, signedAt)
	var se *signdoc.StageError
	if !errors.As(err, &se) || se.Stage != StageSignature {
		t.Fatalf("expected signature StageError, got %v", err)
	}
}

func TestComposeDeterministic(t *testing.T) {
	c := newTestComposer()
	a, err := c.Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two builds of the same submission differ")
	}
}

type fakeStamper struct {
	seal Seal
	err  error
}

func (f fakeStamper) Seal(signdoc.Submission, time.Time) (Seal, error) { return f.seal, f.err }

func TestComposeStamp(t *testing.T) {
	png := testPNG(t)
	c := newTestComposer(WithStamp(fakeStamper{seal: Seal{Image: png, Caption: "sha256:abc"}}))
	doc, err := c.Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatal(err)
	}
	var stamp, caption bool
	for _, b := range allBlocks(doc) {
		switch v := b.Block.(type) {
		case layout.Image:
			if v.Name == "stamp" && v.Width == 25 {
				stamp = true
			}
		case layout.RawText:
			if len(v.Lines) == 1 && v.Lines[0] == "sha256:abc" {
				caption = true
			}
		}
	}
	if !stamp || !caption {
		t.Fatalf("stamp=%v caption=%v", stamp, caption)
	}

	failing := newTestComposer(WithStamp(fakeStamper{err: errors.New("boom")}))
	if _, err := failing.Compose(janeDoe(t), signedAt); err == nil {
		t.Fatal("stamp error swallowed")
	}
}

func TestComposeWatermark(t *testing.T) {
	doc, err := newTestComposer(WithWatermark("DRAFT")).Compose(janeDoe(t), signedAt)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range doc.Pages {
		if p.Watermark != "DRAFT" {
			t.Fatalf("page %d missing watermark", p.Number)
		}
	}
}

func TestStageRunsInIsolation(t *testing.T) {
	c := newTestComposer()
	var notes Stage
	for _, st := range c.Stages() {
		if st.Name == StageNotes {
			notes = st
		}
	}
	in := Input{Submission: signdoc.Submission{Notes: "Call first"}, At: signedAt}
	if notes.Skip(in) {
		t.Fatal("notes stage skipped despite notes")
	}
	if !notes.Skip(Input{}) {
		t.Fatal("notes stage not skipped without notes")
	}

	f, err := notes.Run(in, c.Engine().Start(20))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Pages[0].Blocks) != 3 {
		t.Fatalf("expected heading, rule and text, got %d blocks", len(f.Pages[0].Blocks))
	}
}

func TestStageOrder(t *testing.T) {
	var names []string
	for _, st := range newTestComposer().Stages() {
		names = append(names, st.Name)
	}
	want := []string{StageHeader, StageClientInfo, StageBody, StageNotes, StageSignature}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("stages = %v, want %v", names, want)
	}
}

func TestImageType(t *testing.T) {
	if ImageType(testPNG(t)) != "PNG" {
		t.Error("png not detected")
	}
	if ImageType([]byte{0xFF, 0xD8, 0xFF, 0xE0}) != "JPG" {
		t.Error("jpeg not detected")
	}
	if ImageType([]byte("nope")) != "" {
		t.Error("garbage detected as image")
	}
}

func allBlocks(doc *Document) []layout.Placed {
	var out []layout.Placed
	for _, p := range doc.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}
