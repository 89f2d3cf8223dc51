package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/signature"
	"github.com/lvillar/signdoc/store"
	"github.com/lvillar/signdoc/submit"
)

// Backend is what the tools and resources act on.
type Backend struct {
	Service   *submit.Service
	Store     store.Store // nil disables the record tools
	Agreement *agreement.Agreement
	Now       func() time.Time // defaults to time.Now
}

func (b *Backend) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Backend) records() (store.Store, error) {
	if b.Store == nil {
		return nil, errors.New("no record store configured")
	}
	return b.Store, nil
}

// RegisterDefaultTools adds the signing and record tools to the server.
func RegisterDefaultTools(s *Server, b *Backend) {
	s.AddTool(signAgreementTool(b))
	s.AddTool(renderAgreementTool(b))
	s.AddTool(listRecordsTool(b))
	s.AddTool(getRecordTool(b))
	s.AddTool(findRecordsTool(b))
	s.AddTool(deleteRecordTool(b))
	s.AddTool(exportRecordsTool(b))
}

func submissionProperties() map[string]interface{} {
	return map[string]interface{}{
		"fullName": map[string]interface{}{
			"type":        "string",
			"description": "Client's full legal name",
		},
		"email": map[string]interface{}{
			"type":        "string",
			"description": "Client's email address; the signed agreement is mailed here",
		},
		"phone": map[string]interface{}{
			"type":        "string",
			"description": "Client's phone number",
		},
		"role": map[string]interface{}{
			"type":        "string",
			"description": "Optional company or entity the client signs for",
		},
		"notes": map[string]interface{}{
			"type":        "string",
			"description": "Optional additional notes printed after the terms",
		},
		"signatureMethod": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"drawn", "typed"},
			"description": "How the signature was produced (default: drawn when an image is given, typed otherwise)",
		},
		"signatureDataUrl": map[string]interface{}{
			"type":        "string",
			"description": "Signature image as a data URL (data:image/png;base64,...). Omit for a typed signature.",
		},
		"date": map[string]interface{}{
			"type":        "string",
			"description": "Signing time in RFC 3339 format (default: now)",
		},
		"outputPath": map[string]interface{}{
			"type":        "string",
			"description": "Optional file path to save the PDF. If omitted, returns base64.",
		},
	}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func submissionFromArgs(args map[string]interface{}) (signdoc.Submission, error) {
	sub := signdoc.Submission{
		FullName: stringArg(args, "fullName"),
		Email:    stringArg(args, "email"),
		Phone:    stringArg(args, "phone"),
		Role:     stringArg(args, "role"),
		Notes:    stringArg(args, "notes"),
	}
	if data := stringArg(args, "signatureDataUrl"); data != "" {
		img, err := signature.ParseDataURL(data)
		if err != nil {
			return sub, err
		}
		sub.SignatureImage = img
	}

	method := stringArg(args, "signatureMethod")
	switch {
	case method != "":
	case sub.HasSignature():
		method = string(signdoc.SignatureDrawn)
	default:
		method = string(signdoc.SignatureTyped)
	}
	m, err := signdoc.ParseSignatureMethod(method)
	if err != nil {
		return sub, err
	}
	sub.SignatureMethod = m
	return sub, nil
}

func (b *Backend) dateArg(args map[string]interface{}) (time.Time, error) {
	s := stringArg(args, "date")
	if s == "" {
		return b.now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid 'date' argument: %w", err)
	}
	return t, nil
}

// pdfResult saves pdf to the outputPath argument, or returns it as base64.
func pdfResult(args map[string]interface{}, summary string, pdf []byte) (ToolResult, error) {
	if outputPath := stringArg(args, "outputPath"); outputPath != "" {
		if err := os.WriteFile(outputPath, pdf, 0644); err != nil {
			return ToolResult{}, fmt.Errorf("writing file: %w", err)
		}
		return ToolResult{
			Content: []ContentBlock{{
				Type: "text",
				Text: fmt.Sprintf("%s\nSaved to %s (%d bytes)", summary, outputPath, len(pdf)),
			}},
		}, nil
	}

	encoded := base64.StdEncoding.EncodeToString(pdf)
	return ToolResult{
		Content: []ContentBlock{{
			Type: "text",
			Text: fmt.Sprintf("%s\nPDF (%d bytes). Base64 data:\n%s", summary, len(pdf), encoded),
		}},
	}, nil
}

func jsonResult(v interface{}) (ToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(jsonBytes)}},
	}, nil
}

func signAgreementTool(b *Backend) Tool {
	return Tool{
		Name:        "sign_agreement",
		Description: "Sign the agreement for a client: builds the signed PDF, mails it to the client and records it. Mail failures are reported as errors and may be retried.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": submissionProperties(),
			"required":   []string{"fullName", "email", "phone"},
		},
		Handler: b.handleSignAgreement,
	}
}

func (b *Backend) handleSignAgreement(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	if b.Service == nil {
		return ToolResult{}, errors.New("signing is not configured")
	}
	sub, err := submissionFromArgs(args)
	if err != nil {
		return ToolResult{}, err
	}
	at, err := b.dateArg(args)
	if err != nil {
		return ToolResult{}, err
	}

	res, err := b.Service.Submit(ctx, sub, at)
	if err != nil {
		if signdoc.IsRetryable(err) {
			return ToolResult{}, fmt.Errorf("%w (the agreement was not delivered; you may retry)", err)
		}
		return ToolResult{}, err
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Agreement signed and mailed to %s: %s, %d page(s)", sub.Email, res.FileName, res.Pages)
	if res.Record.ID != "" {
		fmt.Fprintf(&summary, "\nRecord: %s", res.Record.ID)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&summary, "\nWarning: %s", w)
	}
	return pdfResult(args, summary.String(), res.PDF)
}

func renderAgreementTool(b *Backend) Tool {
	return Tool{
		Name:        "render_agreement",
		Description: "Render a preview of the signed agreement PDF without mailing or recording it. Returns the PDF as base64.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": submissionProperties(),
			"required":   []string{"fullName", "email", "phone"},
		},
		Handler: b.handleRenderAgreement,
	}
}

func (b *Backend) handleRenderAgreement(_ context.Context, args map[string]interface{}) (ToolResult, error) {
	if b.Service == nil {
		return ToolResult{}, errors.New("rendering is not configured")
	}
	sub, err := submissionFromArgs(args)
	if err != nil {
		return ToolResult{}, err
	}
	at, err := b.dateArg(args)
	if err != nil {
		return ToolResult{}, err
	}

	art, err := b.Service.Download(sub, at)
	if err != nil {
		return ToolResult{}, err
	}
	return pdfResult(args, fmt.Sprintf("Preview rendered: %s, %d page(s)", art.FileName, art.Pages), art.PDF)
}

func summaries(rs []store.Record) []store.Record {
	out := make([]store.Record, len(rs))
	for i, r := range rs {
		out[i] = r.Summary()
	}
	return out
}

func listRecordsTool(b *Backend) Tool {
	return Tool{
		Name:        "list_records",
		Description: "List every signed agreement record, oldest first, without the PDF data.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Handler: b.handleListRecords,
	}
}

func (b *Backend) handleListRecords(ctx context.Context, _ map[string]interface{}) (ToolResult, error) {
	st, err := b.records()
	if err != nil {
		return ToolResult{}, err
	}
	rs, err := st.All(ctx)
	if err != nil {
		return ToolResult{}, err
	}
	return jsonResult(summaries(rs))
}

func getRecordTool(b *Backend) Tool {
	return Tool{
		Name:        "get_record",
		Description: "Get one signed agreement record. With outputPath, the stored PDF is written to that file.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Record id (agr_...)",
				},
				"outputPath": map[string]interface{}{
					"type":        "string",
					"description": "Optional file path to save the stored PDF",
				},
			},
			"required": []string{"id"},
		},
		Handler: b.handleGetRecord,
	}
}

func (b *Backend) handleGetRecord(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return ToolResult{}, fmt.Errorf("missing 'id' argument")
	}
	st, err := b.records()
	if err != nil {
		return ToolResult{}, err
	}
	r, err := st.Get(ctx, id)
	if err != nil {
		return ToolResult{}, err
	}

	if outputPath := stringArg(args, "outputPath"); outputPath != "" {
		if len(r.Artifact) == 0 {
			return ToolResult{}, fmt.Errorf("record %s has no stored PDF", id)
		}
		if err := os.WriteFile(outputPath, r.Artifact, 0644); err != nil {
			return ToolResult{}, fmt.Errorf("writing file: %w", err)
		}
	}
	return jsonResult(r.Summary())
}

func findRecordsTool(b *Backend) Tool {
	return Tool{
		Name:        "find_records",
		Description: "Find the signed agreement records of one email address (case-insensitive).",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"email": map[string]interface{}{
					"type":        "string",
					"description": "Client email address",
				},
			},
			"required": []string{"email"},
		},
		Handler: b.handleFindRecords,
	}
}

func (b *Backend) handleFindRecords(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	email := stringArg(args, "email")
	if email == "" {
		return ToolResult{}, fmt.Errorf("missing 'email' argument")
	}
	st, err := b.records()
	if err != nil {
		return ToolResult{}, err
	}
	rs, err := st.ByEmail(ctx, email)
	if err != nil {
		return ToolResult{}, err
	}
	return jsonResult(summaries(rs))
}

func deleteRecordTool(b *Backend) Tool {
	return Tool{
		Name:        "delete_record",
		Description: "Delete one signed agreement record.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Record id (agr_...)",
				},
			},
			"required": []string{"id"},
		},
		Handler: b.handleDeleteRecord,
	}
}

func (b *Backend) handleDeleteRecord(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	id := stringArg(args, "id")
	if id == "" {
		return ToolResult{}, fmt.Errorf("missing 'id' argument")
	}
	st, err := b.records()
	if err != nil {
		return ToolResult{}, err
	}
	if err := st.Delete(ctx, id); err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Record %s deleted", id)}},
	}, nil
}

func exportRecordsTool(b *Backend) Tool {
	return Tool{
		Name:        "export_records",
		Description: "Export every record as JSON (full records, PDFs included) or CSV (one row per record, no binary data).",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"format": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"json", "csv"},
					"description": "Export format (default: json)",
				},
				"outputPath": map[string]interface{}{
					"type":        "string",
					"description": "Optional file path for the export. If omitted, the export is returned inline.",
				},
			},
		},
		Handler: b.handleExportRecords,
	}
}

func (b *Backend) handleExportRecords(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	format, err := store.ParseFormat(stringArg(args, "format"))
	if err != nil {
		return ToolResult{}, err
	}
	st, err := b.records()
	if err != nil {
		return ToolResult{}, err
	}

	var buf bytes.Buffer
	if err := store.Export(ctx, st, &buf, format); err != nil {
		return ToolResult{}, err
	}

	if outputPath := stringArg(args, "outputPath"); outputPath != "" {
		if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
			return ToolResult{}, fmt.Errorf("writing file: %w", err)
		}
		return ToolResult{
			Content: []ContentBlock{{
				Type: "text",
				Text: fmt.Sprintf("Records exported to %s (%d bytes)", outputPath, buf.Len()),
			}},
		}, nil
	}
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: buf.String()}},
	}, nil
}
