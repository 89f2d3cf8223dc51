// Package stamp produces the verification seal printed under a signature.
//
// The seal is a 2D barcode (QR or PDF417) encoding either the fingerprint of
// the signing record or, when a secret is configured, an HS256 token that
// carries the fingerprint and can be checked with Verify.
package stamp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/golang-jwt/jwt/v5"
	pdf417 "github.com/ruudk/golang-pdf417"
	"golang.org/x/image/draw"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/compose"
)

// Symbology selects the barcode type.
type Symbology int

const (
	QR Symbology = iota
	PDF417
)

func (s Symbology) String() string {
	if s == PDF417 {
		return "pdf417"
	}
	return "qr"
}

// ParseSymbology accepts "qr" and "pdf417", case-insensitively.
func ParseSymbology(s string) (Symbology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "qr":
		return QR, nil
	case "pdf417":
		return PDF417, nil
	}
	return QR, fmt.Errorf("stamp: unknown symbology %q", s)
}

// Payload is the record a seal attests to.
type Payload struct {
	Version   int    `json:"v"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	SignedAt  string `json:"signed_at"`
	Method    string `json:"method"`
	Signature string `json:"signature,omitempty"` // digest of the signature image
	Agreement string `json:"agreement"`           // digest of the agreement text
}

// Claims are carried by the signed token.
type Claims struct {
	Fingerprint string `json:"fp"`
	Name        string `json:"name"`
	jwt.RegisteredClaims
}

// Stamper implements compose.Stamper.
type Stamper struct {
	symbology Symbology
	secret    []byte
	issuer    string
	agreement string
	width     float64
	scale     int
}

// New returns a Stamper attesting to the default agreement with QR codes.
func New(opts ...Option) *Stamper {
	s := &Stamper{
		symbology: QR,
		issuer:    "signdoc",
		agreement: digest([]byte(agreement.Default().PlainText())),
		scale:     4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payload builds the attested record for sub signed at at.
func (s *Stamper) Payload(sub signdoc.Submission, at time.Time) Payload {
	p := Payload{
		Version:   1,
		Name:      sub.FullName,
		Email:     sub.Email,
		SignedAt:  at.UTC().Format(time.RFC3339),
		Method:    string(sub.SignatureMethod),
		Agreement: s.agreement,
	}
	if sub.HasSignature() {
		p.Signature = digest(sub.SignatureImage)
	}
	return p
}

// Fingerprint returns "sha256:<hex>" over the JSON encoding of p.
func Fingerprint(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("stamp: %w", err)
	}
	return digest(b), nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Content returns the barcode content for sub and its fingerprint.
func (s *Stamper) Content(sub signdoc.Submission, at time.Time) (content, fingerprint string, err error) {
	fp, err := Fingerprint(s.Payload(sub, at))
	if err != nil {
		return "", "", err
	}
	if len(s.secret) == 0 {
		return fp, fp, nil
	}

	claims := Claims{
		Fingerprint: fp,
		Name:        sub.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  sub.Email,
			IssuedAt: jwt.NewNumericDate(at),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("stamp: signing token: %w", err)
	}
	return token, fp, nil
}

// Seal renders the barcode for sub as PNG.
func (s *Stamper) Seal(sub signdoc.Submission, at time.Time) (compose.Seal, error) {
	content, fp, err := s.Content(sub, at)
	if err != nil {
		return compose.Seal{}, err
	}
	bc, err := s.encode(content)
	if err != nil {
		return compose.Seal{}, err
	}

	// Scaled barcodes are 16-bit gray; gofpdf only embeds 8-bit PNGs.
	b := bc.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, bc, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return compose.Seal{}, fmt.Errorf("stamp: encoding png: %w", err)
	}

	width := s.width
	if width <= 0 {
		width = 25
		if s.symbology == PDF417 {
			width = 60
		}
	}
	return compose.Seal{
		Image:   buf.Bytes(),
		Caption: "Verification " + fp[:len("sha256:")+16],
		Width:   width,
		Height:  width * float64(b.Dy()) / float64(b.Dx()),
	}, nil
}

func (s *Stamper) encode(content string) (barcode.Barcode, error) {
	var (
		bc  barcode.Barcode
		err error
	)
	switch s.symbology {
	case PDF417:
		bc = pdf417.Encode(content, 6, 4)
	default:
		if bc, err = qr.Encode(content, qr.M, qr.Auto); err != nil {
			return nil, fmt.Errorf("stamp: qr: %w", err)
		}
	}
	b := bc.Bounds()
	scaled, err := barcode.Scale(bc, b.Dx()*s.scale, b.Dy()*s.scale)
	if err != nil {
		return nil, fmt.Errorf("stamp: scaling %s: %w", s.symbology, err)
	}
	return scaled, nil
}

// ErrInvalidToken is returned by Verify for tokens that do not check out.
var ErrInvalidToken = errors.New("stamp: invalid token")

// Verify checks an HS256 token produced by a Stamper with the same secret
// and returns its claims.
func Verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
