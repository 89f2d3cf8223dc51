package submit

import (
	"github.com/charmbracelet/log"

	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/render"
	"github.com/lvillar/signdoc/store"
)

// Option configures a Service.
type Option func(*Service)

// WithStore records every submission in st.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithRenderOptions passes opts to every render.
func WithRenderOptions(opts ...render.Option) Option {
	return func(s *Service) { s.render = append(s.render, opts...) }
}

// WithPreview sets the composer used by Download, typically one configured
// with compose.WithWatermark.
func WithPreview(c *compose.Composer) Option {
	return func(s *Service) { s.preview = c }
}

// WithConfirmation sends a confirmation mail after the contract mail when
// the dispatcher supports it.
func WithConfirmation(on bool) Option {
	return func(s *Service) { s.confirm = on }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}
