// Package cli implements the signdoc command-line interface.
package cli

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/config"
	"github.com/lvillar/signdoc/mail"
	"github.com/lvillar/signdoc/store"
	"github.com/lvillar/signdoc/submit"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
	now        func() time.Time
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		now: time.Now,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "signdoc",
		Short:        "signdoc builds, mails and records signed agreements",
		Long:         `signdoc turns a client's details and signature into a paginated, signed agreement PDF, mails it to the client and keeps a record of it.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./"+config.DefaultFile+" if present)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.submitCommand())
	root.AddCommand(c.agreementCommand())
	root.AddCommand(c.recordsCommand())
	root.AddCommand(c.mcpCommand())

	return root
}

// loadConfig reads the configuration named by --config.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("Configuration loaded", "path", c.configPath, "store", cfg.Store.Driver)
	return cfg, nil
}

// app is the wired signing stack for one command.
type app struct {
	cfg       config.Config
	service   *submit.Service
	final     *compose.Composer
	store     store.Store
	outbox    *mail.Outbox // set when mail is not really sent
	agreement *agreement.Agreement
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// newApp builds the service described by the configuration. With dryRun,
// mail is kept in an in-memory outbox instead of being sent.
func (c *CLI) newApp(ctx context.Context, dryRun bool) (*app, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	final, preview, err := cfg.Composers()
	if err != nil {
		return nil, err
	}
	a, err := cfg.Agreement()
	if err != nil {
		return nil, err
	}
	sc, err := cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, err
	}

	var (
		dispatcher mail.Dispatcher
		outbox     *mail.Outbox
	)
	if dryRun {
		outbox = &mail.Outbox{}
		dispatcher = outbox
	} else {
		dispatcher = cfg.Dispatcher()
	}

	svc := submit.New(final, dispatcher,
		submit.WithStore(st),
		submit.WithPreview(preview),
		submit.WithRenderOptions(cfg.RenderOptions()...),
		submit.WithConfirmation(cfg.Mail.Confirm),
		submit.WithLogger(c.Logger),
	)
	return &app{cfg: cfg, service: svc, final: final, store: st, outbox: outbox, agreement: a}, nil
}

// openStore opens only the configured record store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	sc, err := cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, sc)
}

// parseDate accepts RFC 3339 or YYYY-MM-DD; empty means now.
func (c *CLI) parseDate(s string) (time.Time, error) {
	if s == "" {
		return c.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("--date must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}
