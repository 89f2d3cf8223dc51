package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" and "csv".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("store: unknown export format %q", s)
}

// ExportFileName returns "contracts_export_<YYYY-MM-DD>.<format>".
func ExportFileName(at time.Time, f Format) string {
	return "contracts_export_" + at.UTC().Format("2006-01-02") + "." + string(f)
}

var csvHeader = []string{
	"id", "fullName", "email", "phone", "role", "notes",
	"signatureMethod", "timestamp", "dateCreated", "status",
}

// Export writes every record in s to w. JSON output is an indented array of
// full records, artifacts included; CSV output has one row per record and
// leaves out the binary fields.
func Export(ctx context.Context, s Store, w io.Writer, f Format) error {
	records, err := s.All(ctx)
	if err != nil {
		return err
	}
	return Write(w, records, f)
}

// Write encodes records to w in format f.
func Write(w io.Writer, records []Record, f Format) error {
	switch f {
	case FormatJSON:
		if records == nil {
			records = []Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("store: export: %w", err)
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("store: export: %w", err)
		}
		for _, r := range records {
			row := []string{
				r.ID, r.FullName, r.Email, r.Phone, r.Role, r.Notes,
				string(r.SignatureMethod), r.Timestamp.Format(time.RFC3339), r.DisplayDate, string(r.Status),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("store: export: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("store: export: %w", err)
		}
		return nil
	}
	return fmt.Errorf("store: unknown export format %q", f)
}
