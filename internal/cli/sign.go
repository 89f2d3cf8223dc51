package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/signature"
	"github.com/lvillar/signdoc/submit"
)

// submissionFlags are the form fields shared by render and submit.
type submissionFlags struct {
	name, email, phone, role, notes string
	method                          string
	signatureFile                   string
	signatureURL                    string
	date                            string
	output                          string
}

func (f *submissionFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.name, "name", "n", "", "client's full name (required)")
	fl.StringVarP(&f.email, "email", "e", "", "client's email address (required)")
	fl.StringVarP(&f.phone, "phone", "p", "", "client's phone number (required)")
	fl.StringVar(&f.role, "role", "", "company or entity the client signs for")
	fl.StringVar(&f.notes, "notes", "", "additional notes printed after the terms")
	fl.StringVar(&f.method, "signature-method", "", "drawn or typed (default: drawn with a signature image, typed otherwise)")
	fl.StringVarP(&f.signatureFile, "signature", "s", "", "signature image file (PNG, JPEG, GIF, BMP or WebP)")
	fl.StringVar(&f.signatureURL, "signature-data-url", "", "signature image as a data URL")
	fl.StringVar(&f.date, "date", "", "signing date, RFC 3339 or YYYY-MM-DD (default: now)")
	fl.StringVarP(&f.output, "output", "o", "", "output file or directory (default: suggested file name in the current directory)")
	cmd.MarkFlagsMutuallyExclusive("signature", "signature-data-url")
}

func (f *submissionFlags) submission() (signdoc.Submission, error) {
	sub := signdoc.Submission{
		FullName: f.name,
		Email:    f.email,
		Phone:    f.phone,
		Role:     f.role,
		Notes:    f.notes,
	}

	switch {
	case f.signatureFile != "":
		img, err := os.ReadFile(f.signatureFile)
		if err != nil {
			return sub, fmt.Errorf("read signature: %w", err)
		}
		sub.SignatureImage = img
	case f.signatureURL != "":
		img, err := signature.ParseDataURL(f.signatureURL)
		if err != nil {
			return sub, err
		}
		sub.SignatureImage = img
	}

	method := f.method
	if method == "" {
		method = string(signdoc.SignatureTyped)
		if sub.HasSignature() {
			method = string(signdoc.SignatureDrawn)
		}
	}
	m, err := signdoc.ParseSignatureMethod(method)
	if err != nil {
		return sub, err
	}
	sub.SignatureMethod = m
	return sub, nil
}

// outputPath resolves --output against the suggested file name.
func (f *submissionFlags) outputPath(suggested string) string {
	if f.output == "" {
		return suggested
	}
	if info, err := os.Stat(f.output); err == nil && info.IsDir() {
		return filepath.Join(f.output, suggested)
	}
	return f.output
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		flags submissionFlags
		final bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a signed agreement PDF without mailing it",
		Long: `Render builds the signed agreement for a client and writes it to disk.
Nothing is mailed or recorded. Unless --final is given, the preview carries
the configured watermark.`,
		Example: `  signdoc render -n "Jane Doe" -e jane@example.com -p 555-0100
  signdoc render -n "Jane Doe" -e jane@example.com -p 555-0100 -s signature.png --final -o out/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.submission()
			if err != nil {
				return err
			}
			at, err := c.parseDate(flags.date)
			if err != nil {
				return err
			}
			a, err := c.newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			c.Logger.Info("Rendering agreement", "name", sub.FullName)
			var art submit.Artifact
			if final {
				art, _, err = submit.Build(a.final, sub, at, a.cfg.RenderOptions()...)
			} else {
				art, err = a.service.Download(sub, at)
			}
			if err != nil {
				return err
			}

			path := flags.outputPath(art.FileName)
			if err := os.WriteFile(path, art.PDF, 0o644); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			out := cmd.OutOrStdout()
			printSuccess(out, "Rendered %d page(s)", art.Pages)
			if art.Overflow > 0 {
				printWarning(out, "%d block(s) taller than a page were placed unsplit", art.Overflow)
			}
			printFile(out, path)
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&final, "final", false, "render without the preview watermark")
	return cmd
}

// submitCommand creates the submit command.
func (c *CLI) submitCommand() *cobra.Command {
	var (
		flags  submissionFlags
		dryRun bool
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign, mail and record an agreement",
		Long: `Submit builds the signed agreement, mails it to the client through
EmailJS and records it in the configured store.

A mail failure fails the command and may be retried. A record that cannot be
stored is reported as a warning; the agreement has already been delivered.`,
		Example: `  signdoc submit -n "Jane Doe" -e jane@example.com -p 555-0100 -s signature.png
  signdoc submit -n "Jane Doe" -e jane@example.com -p 555-0100 --dry-run --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := flags.submission()
			if err != nil {
				return err
			}
			at, err := c.parseDate(flags.date)
			if err != nil {
				return err
			}
			a, err := c.newApp(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Submit(cmd.Context(), sub, at)
			if err != nil {
				if signdoc.IsRetryable(err) {
					return fmt.Errorf("%w\nthe agreement was not delivered; run the command again to retry", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				printSuccess(out, "Agreement built for %s (dry run, not mailed)", sub.Email)
			} else {
				printSuccess(out, "Agreement mailed to %s", sub.Email)
			}
			printDetail(out, "%s · %d page(s) · %d bytes", res.FileName, res.Pages, len(res.PDF))
			if res.Record.ID != "" {
				printDetail(out, "Record %s", res.Record.ID)
			}
			for _, w := range res.Warnings {
				printWarning(out, "%s", w)
			}

			if save || flags.output != "" {
				path := flags.outputPath(res.FileName)
				if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}
				printFile(out, path)
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and record the agreement without mailing it")
	cmd.Flags().BoolVar(&save, "save", false, "also write the PDF to disk")
	return cmd
}
