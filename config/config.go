// Package config loads signdoc.toml and builds the configured components.
//
// Values come from code defaults, then the TOML file, then the environment.
// Secrets are normally left out of the file and supplied through
// SIGNDOC_EMAILJS_PUBLIC_KEY, SIGNDOC_EMAILJS_PRIVATE_KEY, SIGNDOC_STORE_KEY
// and SIGNDOC_STAMP_SECRET.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/layout"
	"github.com/lvillar/signdoc/mail"
	"github.com/lvillar/signdoc/render"
	"github.com/lvillar/signdoc/stamp"
	"github.com/lvillar/signdoc/store"
)

// DefaultFile is the file Load reads when no path is given.
const DefaultFile = "signdoc.toml"

// Config is the contents of signdoc.toml.
type Config struct {
	Document Document `toml:"document"`
	Brand    Brand    `toml:"brand"`
	Stamp    Stamp    `toml:"stamp"`
	Mail     Mail     `toml:"mail"`
	Store    Store    `toml:"store"`
}

// Document controls page layout and rendering.
type Document struct {
	PageSize         string `toml:"page_size"` // a4 or letter
	DateFormat       string `toml:"date_format"`
	Agreement        string `toml:"agreement"`  // TOML file replacing the built-in text
	Letterhead       string `toml:"letterhead"` // PDF whose first page backs every page
	Compress         bool   `toml:"compress"`
	PreviewWatermark string `toml:"preview_watermark"`
}

// Brand overrides the names printed on the document. Empty fields keep the
// built-in value.
type Brand struct {
	Name        string `toml:"name"`
	Banner      string `toml:"banner"`
	FooterLabel string `toml:"footer_label"`
	Title       string `toml:"title"`
	Subject     string `toml:"subject"`
	Author      string `toml:"author"`
	Creator     string `toml:"creator"`
}

// Stamp configures the verification stamp.
type Stamp struct {
	Enabled   bool    `toml:"enabled"`
	Symbology string  `toml:"symbology"` // qr or pdf417
	Secret    string  `toml:"secret"`
	Issuer    string  `toml:"issuer"`
	Width     float64 `toml:"width"` // mm
}

// Mail configures EmailJS delivery.
type Mail struct {
	Endpoint          string `toml:"endpoint"`
	ServiceID         string `toml:"service_id"`
	TemplateID        string `toml:"template_id"`
	ConfirmTemplateID string `toml:"confirm_template_id"`
	PublicKey         string `toml:"public_key"`
	PrivateKey        string `toml:"private_key"`
	FromName          string `toml:"from_name"`
	Confirm           bool   `toml:"confirm"`
}

// Store selects the record store.
type Store struct {
	Driver     string `toml:"driver"`
	URL        string `toml:"url"`
	Prefix     string `toml:"prefix"`
	Table      string `toml:"table"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
	Key        string `toml:"key"` // base64 or hex, 32 bytes
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Document: Document{
			PageSize:         "a4",
			DateFormat:       "January 2, 2006",
			Compress:         true,
			PreviewWatermark: "DRAFT",
		},
		Stamp: Stamp{Symbology: "qr", Issuer: "signdoc"},
		Mail: Mail{
			Endpoint: mail.DefaultEndpoint,
			FromName: mail.DefaultFromName,
		},
		Store: Store{Driver: "memory"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// With an empty path, DefaultFile is read if it exists. Unknown keys are
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultFile
	}
	md, err := toml.DecodeFile(file, &cfg)
	switch {
	case err == nil:
		if keys := md.Undecoded(); len(keys) > 0 {
			names := make([]string, len(keys))
			for i, k := range keys {
				names[i] = k.String()
			}
			sort.Strings(names)
			return Config{}, fmt.Errorf("config: %s: unknown keys %s", file, strings.Join(names, ", "))
		}
	case path == "" && errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Mail.PublicKey, "SIGNDOC_EMAILJS_PUBLIC_KEY")
	set(&c.Mail.PrivateKey, "SIGNDOC_EMAILJS_PRIVATE_KEY")
	set(&c.Store.Key, "SIGNDOC_STORE_KEY")
	set(&c.Store.URL, "SIGNDOC_STORE_URL")
	set(&c.Stamp.Secret, "SIGNDOC_STAMP_SECRET")
}

// Geometry returns the page geometry for Document.PageSize.
func (c Config) Geometry() (layout.Geometry, error) {
	switch strings.ToLower(c.Document.PageSize) {
	case "", "a4":
		return layout.A4(), nil
	case "letter":
		return layout.Letter(), nil
	}
	return layout.Geometry{}, fmt.Errorf("config: unknown page size %q", c.Document.PageSize)
}

// BrandOf returns the built-in brand with the configured overrides.
func (c Config) BrandOf() compose.Brand {
	b := compose.DefaultBrand()
	over := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	over(&b.Name, c.Brand.Name)
	over(&b.Banner, c.Brand.Banner)
	over(&b.FooterLabel, c.Brand.FooterLabel)
	over(&b.Title, c.Brand.Title)
	over(&b.Subject, c.Brand.Subject)
	over(&b.Author, c.Brand.Author)
	over(&b.Creator, c.Brand.Creator)
	return b
}

// Agreement returns the configured agreement text.
func (c Config) Agreement() (*agreement.Agreement, error) {
	if c.Document.Agreement == "" {
		return agreement.Default(), nil
	}
	return LoadAgreement(c.Document.Agreement)
}

type agreementFile struct {
	Title    string `toml:"title"`
	Intro    string `toml:"intro"`
	Sections []struct {
		Title   string `toml:"title"`
		Content string `toml:"content"`
	} `toml:"section"`
}

// LoadAgreement reads an agreement from a TOML file with a title, an intro
// and one [[section]] table per clause.
func LoadAgreement(path string) (*agreement.Agreement, error) {
	var f agreementFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: agreement: %w", err)
	}
	if strings.TrimSpace(f.Title) == "" || len(f.Sections) == 0 {
		return nil, fmt.Errorf("config: agreement %s: title and at least one section are required", path)
	}
	sections := make([]agreement.Section, len(f.Sections))
	for i, s := range f.Sections {
		sections[i] = agreement.Section{Title: s.Title, Content: s.Content}
	}
	return agreement.New(f.Title, f.Intro, sections), nil
}

// Stamper returns the verification stamper, or nil when stamps are off.
func (c Config) Stamper() (*stamp.Stamper, error) {
	if !c.Stamp.Enabled {
		return nil, nil
	}
	sym, err := stamp.ParseSymbology(c.Stamp.Symbology)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a, err := c.Agreement()
	if err != nil {
		return nil, err
	}
	opts := []stamp.Option{stamp.WithSymbology(sym), stamp.WithAgreement(a)}
	if c.Stamp.Secret != "" {
		opts = append(opts, stamp.WithSecret([]byte(c.Stamp.Secret)))
	}
	if c.Stamp.Issuer != "" {
		opts = append(opts, stamp.WithIssuer(c.Stamp.Issuer))
	}
	if c.Stamp.Width > 0 {
		opts = append(opts, stamp.WithWidth(c.Stamp.Width))
	}
	return stamp.New(opts...), nil
}

// ComposerOptions returns the options for a compose.Composer built from c.
func (c Config) ComposerOptions() ([]compose.Option, error) {
	geo, err := c.Geometry()
	if err != nil {
		return nil, err
	}
	a, err := c.Agreement()
	if err != nil {
		return nil, err
	}
	opts := []compose.Option{
		compose.WithGeometry(geo),
		compose.WithAgreement(a),
		compose.WithBrand(c.BrandOf()),
	}
	if c.Document.DateFormat != "" {
		opts = append(opts, compose.WithDateFormat(c.Document.DateFormat))
	}
	st, err := c.Stamper()
	if err != nil {
		return nil, err
	}
	if st != nil {
		opts = append(opts, compose.WithStamp(st))
	}
	return opts, nil
}

// Composers returns the composer for delivered agreements and the one for
// downloaded previews, which carries Document.PreviewWatermark.
func (c Config) Composers(extra ...compose.Option) (final, preview *compose.Composer, err error) {
	opts, err := c.ComposerOptions()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, extra...)
	final = compose.New(opts...)
	if c.Document.PreviewWatermark == "" {
		return final, final, nil
	}
	preview = compose.New(append(opts, compose.WithWatermark(c.Document.PreviewWatermark))...)
	return final, preview, nil
}

// RenderOptions returns the options passed to render.Serialize.
func (c Config) RenderOptions() []render.Option {
	opts := []render.Option{render.WithCompression(c.Document.Compress)}
	if c.Document.Letterhead != "" {
		opts = append(opts, render.WithLetterhead(c.Document.Letterhead))
	}
	return opts
}

// Dispatcher returns the EmailJS client for the [mail] section.
func (c Config) Dispatcher() *mail.EmailJS {
	m := c.Mail
	opts := []mail.Option{mail.WithPrivateKey(m.PrivateKey)}
	if m.Endpoint != "" {
		opts = append(opts, mail.WithEndpoint(m.Endpoint))
	}
	if m.ConfirmTemplateID != "" {
		opts = append(opts, mail.WithConfirmTemplate(m.ConfirmTemplateID))
	}
	if m.FromName != "" {
		opts = append(opts, mail.WithFromName(m.FromName))
	}
	return mail.NewEmailJS(m.ServiceID, m.TemplateID, m.PublicKey, opts...)
}

// StoreConfig returns the [store] section as a store.Config.
func (c Config) StoreConfig() (store.Config, error) {
	s := c.Store
	cfg := store.Config{
		Driver:     s.Driver,
		URL:        s.URL,
		Prefix:     s.Prefix,
		Table:      s.Table,
		Database:   s.Database,
		Collection: s.Collection,
	}
	if s.Key == "" {
		return cfg, nil
	}
	key, err := decodeKey(s.Key)
	if err != nil {
		return store.Config{}, err
	}
	cfg.Key = key
	return cfg, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*store.KeySize {
		if k, err := hex.DecodeString(s); err == nil {
			return k, nil
		}
	}
	k, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("config: store key is neither hex nor base64")
	}
	if len(k) != store.KeySize {
		return nil, fmt.Errorf("config: store key must be %d bytes, got %d", store.KeySize, len(k))
	}
	return k, nil
}
