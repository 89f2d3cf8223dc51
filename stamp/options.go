package stamp

import "github.com/lvillar/signdoc/agreement"

// Option configures a Stamper.
type Option func(*Stamper)

// WithSymbology selects QR (default) or PDF417.
func WithSymbology(s Symbology) Option {
	return func(st *Stamper) { st.symbology = s }
}

// WithSecret makes the seal carry an HS256 token signed with secret instead
// of the bare fingerprint.
func WithSecret(secret []byte) Option {
	return func(st *Stamper) { st.secret = secret }
}

// WithIssuer sets the token issuer. The default is "signdoc".
func WithIssuer(iss string) Option {
	return func(st *Stamper) { st.issuer = iss }
}

// WithAgreement attests to an agreement other than the default one.
func WithAgreement(a *agreement.Agreement) Option {
	return func(st *Stamper) { st.agreement = digest([]byte(a.PlainText())) }
}

// WithWidth sets the printed width of the seal in mm. The height follows
// from the barcode's aspect ratio.
func WithWidth(mm float64) Option {
	return func(st *Stamper) { st.width = mm }
}
