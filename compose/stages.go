package compose

import (
	"bytes"
	"fmt"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/layout"
)

// Palette used by the stages.
var (
	ColorPrimary      = layout.Color{R: 30, G: 64, B: 175}
	ColorPrimaryLight = layout.Color{R: 37, G: 99, B: 235}
	ColorText         = layout.Color{R: 31, G: 41, B: 55}
	ColorMuted        = layout.Color{R: 75, G: 85, B: 99}
	ColorSignLine     = layout.Color{R: 200, G: 200, B: 200}
)

// Headings that mark each section of the document.
const (
	HeadingClientInfo = "CLIENT INFORMATION"
	HeadingTerms      = "TERMS AND CONDITIONS"
	HeadingNotes      = "ADDITIONAL NOTES"
	HeadingSignature  = "ELECTRONIC SIGNATURE"
)

// NoSignatureText replaces the signature image when none was supplied.
const NoSignatureText = "No signature provided"

// Signature image box, in mm.
const (
	signatureWidth  = 80
	signatureHeight = 30
)

// sectionHeading is the coloured heading with a short rule under it that
// opens every stage after the banner.
func sectionHeading(text string, size float64) []layout.Block {
	return []layout.Block{
		layout.Heading{
			Text:  text,
			Level: 2,
			Style: layout.Style{Font: layout.Font{Style: "B", Size: size}, Color: ColorPrimary},
		},
		layout.Rule{Length: 100, Thickness: 0.4, Color: ColorPrimary, Style: layout.Style{After: 2}},
	}
}

func (c *Composer) header(in Input, f layout.Flow) (layout.Flow, error) {
	return c.engine.Place(f, layout.Banner{
		Title:    c.brand.Banner,
		Subtitle: "Generated on: " + c.date(in.At),
		Height:   25,
		From:     ColorPrimary,
		To:       ColorPrimaryLight,
		Style:    layout.Style{After: 10},
	}), nil
}

func (c *Composer) clientInfo(in Input, f layout.Flow) (layout.Flow, error) {
	sub := in.Submission
	if err := sub.CheckRequired(); err != nil {
		return f, err
	}

	lines := []string{
		"Full Name: " + sub.FullName,
		"Email Address: " + sub.Email,
		"Phone Number: " + sub.Phone,
	}
	if sub.Role != "" {
		lines = append(lines, "Company/Entity: "+sub.Role)
	}

	f = c.engine.PlaceAll(f, sectionHeading(HeadingClientInfo, 14)...)
	return c.engine.Place(f, layout.RawText{
		Lines: lines,
		Style: layout.Style{Font: layout.Font{Size: 11}, Color: ColorText, After: 8},
	}), nil
}

func (c *Composer) body(in Input, f layout.Flow) (layout.Flow, error) {
	a := in.Agreement
	if a == nil {
		return f, fmt.Errorf("%w: no agreement text", signdoc.ErrInvalidSubmission)
	}

	f = c.engine.PlaceAll(f, sectionHeading(HeadingTerms, 14)...)
	f = c.engine.Place(f, layout.Heading{
		Text:  a.Title(),
		Level: 2,
		Style: layout.Style{Font: layout.Font{Style: "B", Size: 13}, Color: ColorPrimary, Align: "C", After: 2},
	})
	f = c.markup(f, a.Intro(), 10, 6)

	for _, s := range a.Sections() {
		f = c.engine.Place(f, layout.Heading{
			Text:  s.Title,
			Level: 4,
			Style: layout.Style{Font: layout.Font{Style: "B", Size: 11}, Color: ColorText},
		})
		f = c.markup(f, s.Content, 9, 4)
	}
	return f, nil
}

// markup places the paragraphs and list items of a markup fragment, leaving
// after mm below the last one.
func (c *Composer) markup(f layout.Flow, content string, size, after float64) layout.Flow {
	blocks := agreement.Blocks(content)
	for i, tb := range blocks {
		st := layout.Style{Font: layout.Font{Size: size}, Color: ColorText}
		if tb.IsItem() {
			st.Indent = 4
		}
		if i == len(blocks)-1 {
			st.After = after
		}
		f = c.engine.Place(f, layout.Paragraph{Text: tb.Text, Marker: tb.Marker, Style: st})
	}
	return f
}

func (c *Composer) notes(in Input, f layout.Flow) (layout.Flow, error) {
	f = c.engine.PlaceAll(f, sectionHeading(HeadingNotes, 12)...)
	return c.engine.Place(f, layout.Paragraph{
		Text:  in.Submission.Notes,
		Style: layout.Style{Font: layout.Font{Size: 10}, Color: ColorText, After: 8},
	}), nil
}

func (c *Composer) signature(in Input, f layout.Flow) (layout.Flow, error) {
	sub := in.Submission
	f = c.engine.PlaceAll(f, sectionHeading(HeadingSignature, 12)...)

	if sub.HasSignature() {
		typ := ImageType(sub.SignatureImage)
		if typ == "" {
			return f, fmt.Errorf("%w: signature image is neither PNG nor JPEG", signdoc.ErrInvalidSubmission)
		}
		f = c.engine.Place(f, layout.Image{
			Name:   "signature",
			Data:   sub.SignatureImage,
			Type:   typ,
			Width:  signatureWidth,
			Height: signatureHeight,
		})
	} else {
		f = c.engine.Place(f, layout.Paragraph{
			Text:  NoSignatureText,
			Style: layout.Style{Font: layout.Font{Style: "I", Size: 10}, Color: ColorMuted},
		})
	}

	f = c.engine.PlaceAll(f,
		layout.Rule{Length: signatureWidth, Thickness: 0.3, Color: ColorSignLine},
		layout.RawText{
			Lines: []string{"Signature: " + sub.FullName, "Date: " + c.date(in.At)},
			Style: layout.Style{Font: layout.Font{Size: 10}, Color: ColorText, After: 2},
		},
		layout.Paragraph{
			Text: fmt.Sprintf("By signing above, %s electronically agrees to the terms and conditions "+
				"outlined in this agreement.", sub.FullName),
			Style: layout.Style{Font: layout.Font{Size: 9}, Color: ColorMuted, After: 4},
		},
	)

	if c.stamper == nil {
		return f, nil
	}
	seal, err := c.stamper.Seal(sub, in.At)
	if err != nil {
		return f, fmt.Errorf("verification stamp: %w", err)
	}
	w, h := seal.Width, seal.Height
	if w <= 0 {
		w = 25
	}
	if h <= 0 {
		h = w
	}
	f = c.engine.Place(f, layout.Image{Name: "stamp", Data: seal.Image, Type: "PNG", Width: w, Height: h})
	if seal.Caption != "" {
		f = c.engine.Place(f, layout.RawText{
			Lines: []string{seal.Caption},
			Style: layout.Style{Font: layout.Font{Family: "Courier", Size: 7}, Color: ColorMuted},
		})
	}
	return f, nil
}

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// ImageType returns "PNG" or "JPG" by sniffing data, or "" if neither.
func ImageType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "PNG"
	case bytes.HasPrefix(data, jpegMagic):
		return "JPG"
	}
	return ""
}
