// Package signature produces the signature image embedded in a document.
//
// Drawn signatures arrive as images in whatever format the capture surface
// produced; Normalize bounds their size and re-encodes them as opaque PNG.
// Typed signatures are rendered from the signer's name in an italic face.
package signature

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/lvillar/signdoc"
)

// Canvas size of a typed signature, in pixels.
const (
	TypedWidth  = 600
	TypedHeight = 200
)

// Bounds for normalized images. Larger inputs are scaled down to fit.
const (
	MaxWidth  = 1200
	MaxHeight = 400
)

const (
	typedSize    = 60 // points at 72 dpi, i.e. pixels
	typedMinSize = 18
	typedPadding = 20
)

var italic *opentype.Font

func init() {
	var err error
	if italic, err = opentype.Parse(goitalic.TTF); err != nil {
		panic("signature: parsing embedded font: " + err.Error())
	}
}

// Typed renders name in black italic, centred on a white canvas, and returns
// it as PNG. Long names are set smaller so they fit the canvas.
func Typed(name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("signature: %w: empty name", signdoc.ErrInvalidSubmission)
	}

	img := image.NewRGBA(image.Rect(0, 0, TypedWidth, TypedHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face, width, err := fitFace(name, TypedWidth-2*typedPadding)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	m := face.Metrics()
	baseline := (TypedHeight + m.Ascent.Ceil() - m.Descent.Ceil()) / 2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P((TypedWidth-width.Ceil())/2, baseline),
	}
	d.DrawString(name)

	return encode(img)
}

// fitFace returns the largest face, at most typedSize, in which name is no
// wider than maxWidth, and the width of name in it.
func fitFace(name string, maxWidth int) (font.Face, fixed.Int26_6, error) {
	for size := float64(typedSize); ; size -= 4 {
		face, err := opentype.NewFace(italic, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("signature: %w", err)
		}
		w := font.MeasureString(face, name)
		if w.Ceil() <= maxWidth || size <= typedMinSize {
			return face, w, nil
		}
		face.Close()
	}
}

// Normalize decodes a PNG, JPEG, GIF, BMP or WebP image, scales it down to
// fit MaxWidth x MaxHeight, flattens transparency onto white and returns
// the result as PNG.
func Normalize(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("signature: %w: %v", signdoc.ErrInvalidSubmission, err)
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), MaxWidth, MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	return encode(dst)
}

// fit scales w x h down, keeping the aspect ratio, until it fits maxW x maxH.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	rw := float64(maxW) / float64(w)
	rh := float64(maxH) / float64(h)
	r := rw
	if rh < r {
		r = rh
	}
	nw, nh := int(float64(w)*r+0.5), int(float64(h)*r+0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("signature: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDataURL extracts the image bytes from a base64 data URL such as
// "data:image/png;base64,iVBOR...". Bare base64 is accepted as well.
func ParseDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, fmt.Errorf("signature: %w: not a base64 data URL", signdoc.ErrInvalidSubmission)
		}
		if !strings.HasPrefix(s, "data:image/") {
			return nil, fmt.Errorf("signature: %w: data URL is not an image", signdoc.ErrInvalidSubmission)
		}
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature: %w: %v", signdoc.ErrInvalidSubmission, err)
	}
	return b, nil
}

// Prepare returns sub with a signature image ready for composition: a
// supplied image is normalized, and a typed signature without one is
// rendered from the full name. A drawn signature with no image is left
// empty so the document shows the missing-signature text.
func Prepare(sub signdoc.Submission) (signdoc.Submission, error) {
	switch {
	case sub.HasSignature():
		img, err := Normalize(sub.SignatureImage)
		if err != nil {
			return sub, err
		}
		sub.SignatureImage = img
	case sub.SignatureMethod == signdoc.SignatureTyped && strings.TrimSpace(sub.FullName) != "":
		img, err := Typed(sub.FullName)
		if err != nil {
			return sub, err
		}
		sub.SignatureImage = img
	}
	return sub, nil
}
