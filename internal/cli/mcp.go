package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/lvillar/signdoc/mcp"
)

// mcpCommand creates the mcp command.
func (c *CLI) mcpCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the signing tools over MCP on stdin/stdout",
		Long: `Mcp runs a Model Context Protocol server on stdin and stdout so AI
assistants can sign agreements, render previews and look up records.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ServeMCP(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep mail in memory instead of sending it")
	return cmd
}

// ServeMCP wires the configured signing stack into an MCP server and runs it
// on in and out until EOF or until ctx is done.
func (c *CLI) ServeMCP(ctx context.Context, in io.Reader, out io.Writer, dryRun bool) error {
	a, err := c.newApp(ctx, dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	b := &mcp.Backend{
		Service:   a.service,
		Store:     a.store,
		Agreement: a.agreement,
		Now:       c.now,
	}
	s := mcp.NewServerWithIO(in, out)
	mcp.RegisterDefaultTools(s, b)
	mcp.RegisterDefaultResources(s, b)

	c.Logger.Info("Serving MCP", "store", a.cfg.Store.Driver, "dryRun", dryRun)
	return s.Run(ctx)
}

// SetConfigPath sets the configuration file for commands run without the
// root command, such as ServeMCP from a dedicated binary.
func (c *CLI) SetConfigPath(path string) {
	c.configPath = path
}
