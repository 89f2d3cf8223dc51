package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lvillar/signdoc/store"
)

// agreementCommand creates the agreement command.
func (c *CLI) agreementCommand() *cobra.Command {
	var markup bool

	cmd := &cobra.Command{
		Use:   "agreement",
		Short: "Print the agreement text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			a, err := cfg.Agreement()
			if err != nil {
				return err
			}
			if markup {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), a.DisplayMarkup())
			} else {
				_, err = fmt.Fprint(cmd.OutOrStdout(), a.PlainText())
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&markup, "markup", false, "print the HTML display markup instead of plain text")
	return cmd
}

// recordsCommand creates the records management command.
func (c *CLI) recordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and manage signed agreement records",
	}

	cmd.AddCommand(c.recordsListCommand())
	cmd.AddCommand(c.recordsGetCommand())
	cmd.AddCommand(c.recordsFindCommand())
	cmd.AddCommand(c.recordsDeleteCommand())
	cmd.AddCommand(c.recordsClearCommand())
	cmd.AddCommand(c.recordsExportCommand())
	cmd.AddCommand(c.recordsStatsCommand())

	return cmd
}

// withStore opens the store, runs fn and closes the store.
func (c *CLI) withStore(cmd *cobra.Command, fn func(st store.Store) error) error {
	st, err := c.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (c *CLI) recordsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every record, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(st store.Store) error {
				rs, err := st.All(cmd.Context())
				if err != nil {
					return err
				}
				printRecords(cmd.OutOrStdout(), rs)
				return nil
			})
		},
	}
}

func (c *CLI) recordsGetCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(st store.Store) error {
				r, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printRecord(out, r)
				if output == "" {
					return nil
				}
				if len(r.Artifact) == 0 {
					return fmt.Errorf("record %s has no stored PDF", r.ID)
				}
				if err := os.WriteFile(output, r.Artifact, 0o644); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}
				printFile(out, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the stored PDF to this file")
	return cmd
}

func (c *CLI) recordsFindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find <email>",
		Short: "List the records of one email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(st store.Store) error {
				rs, err := st.ByEmail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRecords(cmd.OutOrStdout(), rs)
				return nil
			})
		},
	}
}

func (c *CLI) recordsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(st store.Store) error {
				for _, id := range args {
					if err := st.Delete(cmd.Context(), id); err != nil {
						return err
					}
					c.Logger.Debug("Record deleted", "id", id)
				}
				printSuccess(cmd.OutOrStdout(), "Deleted %d record(s)", len(args))
				return nil
			})
		},
	}
}

func (c *CLI) recordsClearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete every record without --yes")
			}
			return c.withStore(cmd, func(st store.Store) error {
				if err := st.Clear(cmd.Context()); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "All records deleted")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting every record")
	return cmd
}

func (c *CLI) recordsExportCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record as JSON or CSV",
		Long: `Export writes every record to a file. JSON exports carry the full
records, PDFs included; CSV exports have one row per record and leave out
binary data. Use "-o -" to write to standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}
			return c.withStore(cmd, func(st store.Store) error {
				if output == "-" {
					return store.Export(cmd.Context(), st, cmd.OutOrStdout(), f)
				}
				path := output
				if path == "" {
					path = store.ExportFileName(c.now(), f)
				}
				file, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create export: %w", err)
				}
				if err := store.Export(cmd.Context(), st, file, f); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Records exported")
				printFile(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: contracts_export_<date>.<format>)")
	return cmd
}

func (c *CLI) recordsStatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(st store.Store) error {
				stats, err := store.StatsFor(cmd.Context(), st)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}
				printStats(out, stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printStats(w io.Writer, st store.Stats) {
	printKeyValue(w, "Agreements", fmt.Sprint(st.Total))
	printKeyValue(w, "Clients", fmt.Sprint(st.UniqueEmails))
	if st.Total == 0 {
		return
	}
	printKeyValue(w, "Oldest", st.Oldest.Format(store.DisplayDateFormat))
	printKeyValue(w, "Newest", st.Newest.Format(store.DisplayDateFormat))
	for _, s := range []store.Status{store.StatusCompleted, store.StatusMailed, store.StatusFailed} {
		if n := st.ByStatus[s]; n > 0 {
			printKeyValue(w, string(s), fmt.Sprint(n))
		}
	}
}
