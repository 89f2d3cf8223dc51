package compose

import (
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/layout"
)

// Option is a functional option for configuring a Composer via New.
type Option func(*config)

type config struct {
	geometry   layout.Geometry
	measurer   layout.Measurer
	agreement  *agreement.Agreement
	brand      Brand
	stamper    Stamper
	watermark  string
	dateFormat string
}

// WithGeometry sets the page size and margins.
func WithGeometry(g layout.Geometry) Option {
	return func(c *config) {
		c.geometry = g
	}
}

// WithMeasurer sets the text measurer used for wrapping.
// The default measures with PDF core font metrics.
func WithMeasurer(m layout.Measurer) Option {
	return func(c *config) {
		c.measurer = m
	}
}

// WithAgreement replaces the compiled-in agreement text.
func WithAgreement(a *agreement.Agreement) Option {
	return func(c *config) {
		c.agreement = a
	}
}

// WithBrand sets the names printed in the banner, footer and metadata.
func WithBrand(b Brand) Option {
	return func(c *config) {
		c.brand = b
	}
}

// WithStamp adds a verification stamp under the signature.
func WithStamp(s Stamper) Option {
	return func(c *config) {
		c.stamper = s
	}
}

// WithWatermark stamps text diagonally across every page, e.g. "DRAFT".
func WithWatermark(text string) Option {
	return func(c *config) {
		c.watermark = text
	}
}

// WithDateFormat sets the time layout used for printed dates.
// The default is "January 2, 2006".
func WithDateFormat(layout string) Option {
	return func(c *config) {
		c.dateFormat = layout
	}
}
