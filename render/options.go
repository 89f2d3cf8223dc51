package render

// Option is a functional option for Serialize and Write.
type Option func(*config)

type config struct {
	compress   bool
	letterhead string
}

// WithCompression turns page stream compression on or off. It is on by
// default.
func WithCompression(on bool) Option {
	return func(c *config) {
		c.compress = on
	}
}

// WithLetterhead draws the first page of the PDF at path behind every page.
func WithLetterhead(path string) Option {
	return func(c *config) {
		c.letterhead = path
	}
}
