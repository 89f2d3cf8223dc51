// Command signdoc-mcp is an MCP (Model Context Protocol) server that lets AI
// assistants sign, render and look up client agreements.
//
// # Installation
//
//	go install github.com/lvillar/signdoc/cmd/signdoc-mcp@latest
//
// # Configuration for Claude Desktop
//
// Add to ~/.config/claude/claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "signdoc": {
//	      "command": "signdoc-mcp",
//	      "args": ["-config", "/path/to/signdoc.toml"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - sign_agreement: Build, mail and record a signed agreement
//   - render_agreement: Render a preview PDF without mailing it
//   - list_records: List stored records
//   - get_record: Show one record, optionally writing its PDF
//   - find_records: List the records of an email address
//   - delete_record: Delete a record
//   - export_records: Export records as JSON or CSV
//
// # Available Resources
//
//   - agreement://text : The agreement as plain text
//   - agreement://markup : The agreement as HTML markup
//   - records://stats : Record counts and dates
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lvillar/signdoc/internal/cli"
)

func main() {
	configPath := flag.String("config", "", "config file (default: ./signdoc.toml if present)")
	dryRun := flag.Bool("dry-run", false, "keep mail in memory instead of sending it")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	level := cli.LogInfo
	if *verbose {
		level = cli.LogDebug
	}
	c := cli.New(os.Stderr, level)
	c.SetConfigPath(*configPath)

	if err := c.ServeMCP(ctx, os.Stdin, os.Stdout, *dryRun); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "signdoc-mcp: %v\n", err)
		os.Exit(1)
	}
}
