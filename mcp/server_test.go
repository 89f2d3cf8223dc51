package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/layout"
	"github.com/lvillar/signdoc/mail"
	"github.com/lvillar/signdoc/store"
	"github.com/lvillar/signdoc/submit"
)

func sendRequest(t *testing.T, s *Server, method string, id int, params interface{}) jsonrpcResponse {
	t.Helper()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}

	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	reqBytes = append(reqBytes, '\n')

	var output bytes.Buffer
	s.input = bytes.NewReader(reqBytes)
	s.output = &output

	s.Run(context.Background())

	var resp jsonrpcResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response %q: %v", output.String(), err)
	}
	return resp
}

// callTool calls a tool and returns the text of its first content block.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	resp := sendRequest(t, s, "tools/call", 1, map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %v", name, resp.Error.Message)
	}
	resultBytes, _ := json.Marshal(resp.Result)
	var result ToolResult
	if err := json.Unmarshal(resultBytes, &result); err != nil || len(result.Content) == 0 {
		t.Fatalf("%s: unexpected result %s", name, resultBytes)
	}
	return result.Content[0].Text, result.IsError
}

type testEnv struct {
	server *Server
	outbox *mail.Outbox
	store  *store.Memory
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	c := compose.New(compose.WithMeasurer(layout.FixedAdvance(0.5)))
	outbox := &mail.Outbox{}
	st := store.NewMemory()
	svc := submit.New(c, outbox, submit.WithStore(st), submit.WithLogger(log.New(io.Discard)))

	s := NewServerWithIO(nil, nil)
	b := &Backend{
		Service: svc,
		Store:   st,
		Now:     func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
	RegisterDefaultTools(s, b)
	RegisterDefaultResources(s, b)
	return testEnv{server: s, outbox: outbox, store: st}
}

var janeArgs = map[string]interface{}{
	"fullName": "Jane Doe",
	"email":    "jane@x.com",
	"phone":    "555-0100",
}

func TestServerInitialize(t *testing.T) {
	s := NewServerWithIO(nil, nil)

	resp := sendRequest(t, s, "initialize", 1, map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "test", "version": "1.0"},
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}

	if result["protocolVersion"] != "2024-11-05" {
		t.Fatalf("unexpected protocol version: %v", result["protocolVersion"])
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("missing serverInfo")
	}
	if serverInfo["name"] != ServerName {
		t.Fatalf("unexpected server name: %v", serverInfo["name"])
	}
}

func TestServerToolsList(t *testing.T) {
	env := newTestEnv(t)

	resp := sendRequest(t, env.server, "tools/list", 2, nil)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}

	tools, ok := result["tools"].([]interface{})
	if !ok {
		t.Fatal("tools is not an array")
	}

	var names []string
	for _, tool := range tools {
		tm, ok := tool.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := tm["name"].(string); ok {
			names = append(names, name)
		}
	}

	want := "delete_record,export_records,find_records,get_record,list_records,render_agreement,sign_agreement"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("tools = %s, want %s", got, want)
	}
}

func TestServerResourcesList(t *testing.T) {
	env := newTestEnv(t)

	resp := sendRequest(t, env.server, "resources/list", 3, nil)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("result is not a map")
	}

	resources, ok := result["resources"].([]interface{})
	if !ok {
		t.Fatal("resources is not an array")
	}

	if len(resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(resources))
	}

	s := NewServerWithIO(nil, nil)
	RegisterDefaultResources(s, &Backend{})
	if len(s.resources) != 2 {
		t.Fatalf("without a store expected 2 resources, got %d", len(s.resources))
	}
}

func TestServerPing(t *testing.T) {
	s := NewServerWithIO(nil, nil)

	resp := sendRequest(t, s, "ping", 4, nil)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := NewServerWithIO(nil, nil)

	resp := sendRequest(t, s, "nonexistent/method", 5, nil)

	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Fatalf("expected error code -32601, got %d", resp.Error.Code)
	}
}

func TestServerUnknownTool(t *testing.T) {
	env := newTestEnv(t)

	resp := sendRequest(t, env.server, "tools/call", 6, map[string]interface{}{
		"name":      "nonexistent_tool",
		"arguments": map[string]interface{}{},
	})

	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestSignAgreementTool(t *testing.T) {
	env := newTestEnv(t)

	text, isErr := callTool(t, env.server, "sign_agreement", janeArgs)
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if !strings.Contains(text, "Jane_Doe_Contract_2025-03-14.pdf") || !strings.Contains(text, "Base64") {
		t.Fatalf("unexpected result: %s", text)
	}
	if len(env.outbox.Sent()) != 1 {
		t.Fatal("agreement not mailed")
	}
	all, _ := env.store.All(context.Background())
	if len(all) != 1 || !strings.Contains(text, all[0].ID) {
		t.Fatalf("record not stored or not reported: %s", text)
	}
}

func TestSignAgreementToolMissingField(t *testing.T) {
	env := newTestEnv(t)

	text, isErr := callTool(t, env.server, "sign_agreement", map[string]interface{}{"fullName": "Jane Doe"})
	if !isErr || !strings.Contains(text, "client_info") {
		t.Fatalf("expected client_info error, got %s", text)
	}
	if len(env.outbox.Sent()) != 0 {
		t.Fatal("incomplete submission was mailed")
	}
}

func TestSignAgreementToolBadSignature(t *testing.T) {
	env := newTestEnv(t)

	args := map[string]interface{}{"signatureDataUrl": "data:text/plain;base64,aGk="}
	for k, v := range janeArgs {
		args[k] = v
	}
	if text, isErr := callTool(t, env.server, "sign_agreement", args); !isErr {
		t.Fatalf("expected error, got %s", text)
	}
}

func TestRenderAgreementTool(t *testing.T) {
	env := newTestEnv(t)
	out := filepath.Join(t.TempDir(), "preview.pdf")

	args := map[string]interface{}{"outputPath": out, "date": "2025-01-02T10:00:00Z"}
	for k, v := range janeArgs {
		args[k] = v
	}
	text, isErr := callTool(t, env.server, "render_agreement", args)
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if !strings.Contains(text, "Jane_Doe_Contract_2025-01-02.pdf") {
		t.Errorf("unexpected result: %s", text)
	}
	data, err := os.ReadFile(out)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("preview not written: %v", err)
	}
	if len(env.outbox.Sent()) != 0 {
		t.Fatal("render mailed the agreement")
	}
}

func TestRecordTools(t *testing.T) {
	env := newTestEnv(t)
	callTool(t, env.server, "sign_agreement", janeArgs)
	all, _ := env.store.All(context.Background())
	id := all[0].ID

	text, _ := callTool(t, env.server, "list_records", nil)
	var listed []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &listed); err != nil || len(listed) != 1 {
		t.Fatalf("list_records: %v %s", err, text)
	}
	if _, ok := listed[0]["pdfBase64"]; ok {
		t.Error("listing carries the PDF")
	}

	out := filepath.Join(t.TempDir(), "stored.pdf")
	text, isErr := callTool(t, env.server, "get_record", map[string]interface{}{"id": id, "outputPath": out})
	if isErr || !strings.Contains(text, "Jane Doe") {
		t.Fatalf("get_record: %s", text)
	}
	if data, _ := os.ReadFile(out); !bytes.Equal(data, all[0].Artifact) {
		t.Error("stored PDF not written")
	}

	text, _ = callTool(t, env.server, "find_records", map[string]interface{}{"email": "JANE@X.COM"})
	if !strings.Contains(text, id) {
		t.Errorf("find_records: %s", text)
	}

	text, _ = callTool(t, env.server, "export_records", map[string]interface{}{"format": "csv"})
	if !strings.HasPrefix(text, "id,fullName,email") || !strings.Contains(text, id) {
		t.Errorf("export_records: %s", text)
	}

	if text, isErr := callTool(t, env.server, "delete_record", map[string]interface{}{"id": id}); isErr {
		t.Fatalf("delete_record: %s", text)
	}
	if text, isErr := callTool(t, env.server, "get_record", map[string]interface{}{"id": id}); !isErr {
		t.Fatalf("deleted record still readable: %s", text)
	}
}

func TestServerResourcesRead(t *testing.T) {
	env := newTestEnv(t)
	callTool(t, env.server, "sign_agreement", janeArgs)

	tests := []struct {
		uri  string
		want string
	}{
		{"agreement://text", "WEB DEVELOPMENT & CODE ASSIGNMENT AGREEMENT"},
		{"agreement://markup", `class="contract-title"`},
		{"records://stats", `"totalContracts": 1`},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			resp := sendRequest(t, env.server, "resources/read", 8, map[string]interface{}{"uri": tt.uri})
			if resp.Error != nil {
				t.Fatalf("unexpected error: %v", resp.Error.Message)
			}
			resultBytes, _ := json.Marshal(resp.Result)
			var result struct {
				Contents []ResourceContent `json:"contents"`
			}
			if err := json.Unmarshal(resultBytes, &result); err != nil || len(result.Contents) != 1 {
				t.Fatalf("unexpected result %s", resultBytes)
			}
			if !strings.Contains(result.Contents[0].Text, tt.want) {
				t.Errorf("%s does not contain %q", tt.uri, tt.want)
			}
		})
	}
}

func TestServerNotificationsGetNoReply(t *testing.T) {
	var output bytes.Buffer
	s := NewServerWithIO(strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"ping"}`,
		`{"jsonrpc":"2.0","method":"no/such/method"}`,
	}, "\n")+"\n"), &output)

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if output.Len() != 0 {
		t.Fatalf("notifications were answered: %s", output.String())
	}
}

func TestServerParseError(t *testing.T) {
	var output bytes.Buffer
	s := NewServerWithIO(strings.NewReader("{not json\n"), &output)
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(output.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshaling response %q: %v", output.String(), err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected a parse error, got %+v", resp)
	}
}

func TestServerInvalidParams(t *testing.T) {
	env := newTestEnv(t)

	resp := sendRequest(t, env.server, "resources/read", 1, []int{1, 2})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
}

func TestServerMultipleRequests(t *testing.T) {
	// Test that the server can handle multiple requests in sequence
	requests := []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}

	input := strings.Join(requests, "\n") + "\n"
	var output bytes.Buffer

	env := newTestEnv(t)
	s := env.server
	s.input = strings.NewReader(input)
	s.output = &output

	s.Run(context.Background())

	// Each line should be a valid JSON response
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 responses, got %d: %s", len(lines), output.String())
	}

	for i, line := range lines {
		var resp jsonrpcResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d: unmarshal error: %v\nline: %s", i, err, line)
		}
		if resp.Error != nil {
			t.Errorf("response %d: unexpected error: %s", i, resp.Error.Message)
		}
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var output bytes.Buffer
	s := NewServerWithIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &output)
	if err := s.Run(ctx); err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if output.Len() != 0 {
		t.Fatalf("handled a request after cancel: %s", output.String())
	}
}

func TestToolAddTool(t *testing.T) {
	s := NewServerWithIO(nil, nil)

	customTool := Tool{
		Name:        "custom_tool",
		Description: "A custom test tool",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Handler: func(_ context.Context, args map[string]interface{}) (ToolResult, error) {
			return ToolResult{
				Content: []ContentBlock{{Type: "text", Text: "custom result"}},
			}, nil
		},
	}

	s.AddTool(customTool)

	resp := sendRequest(t, s, "tools/call", 1, map[string]interface{}{
		"name":      "custom_tool",
		"arguments": map[string]interface{}{},
	})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}

	resultBytes, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(resultBytes), "custom result") {
		t.Fatalf("unexpected result: %s", string(resultBytes))
	}
}
