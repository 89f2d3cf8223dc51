// Package mcp implements a Model Context Protocol (MCP) server that lets AI
// assistants sign agreements, render previews and look up signed records.
//
// The server speaks newline-delimited JSON-RPC 2.0 over stdio and exposes
// MCP tools and resources (protocol revision 2024-11-05). Requests without
// an id are notifications and never get a reply.
//
// # Usage with Claude Desktop
//
// Add to your claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "signdoc": {
//	      "command": "signdoc-mcp"
//	    }
//	  }
//	}
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// Reported to clients on initialize.
const (
	ServerName    = "signdoc-mcp"
	ServerVersion = "1.0.0"
)

// Tool is an MCP tool the client can call. Handler is not advertised.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	Handler     ToolHandler            `json:"-"`
}

// ToolHandler executes a tool with the client's arguments.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (ToolResult, error)

// ToolResult is the result of a tool call.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is a piece of content in a tool result.
type ContentBlock struct {
	Type     string `json:"type"` // "text" or "resource"
	Text     string `json:"text,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64
}

// Resource is a readable MCP resource.
type Resource struct {
	URI         string          `json:"uri"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	MIMEType    string          `json:"mimeType,omitempty"`
	Handler     ResourceHandler `json:"-"`
}

// ResourceHandler reads a resource.
type ResourceHandler func(ctx context.Context, uri string) ([]ResourceContent, error)

// ResourceContent is the content of a read resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // base64
}

// methodFunc answers one JSON-RPC method. A nil error with a nil result
// replies with an empty object.
type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, *jsonrpcError)

// Server routes JSON-RPC messages to registered tools and resources.
type Server struct {
	tools     map[string]Tool
	resources map[string]Resource
	methods   map[string]methodFunc
	input     io.Reader
	output    io.Writer
	mu        sync.Mutex // serializes writes to output
}

// NewServer returns a server on stdin and stdout.
func NewServer() *Server {
	return NewServerWithIO(os.Stdin, os.Stdout)
}

// NewServerWithIO returns a server reading in and writing out.
func NewServerWithIO(in io.Reader, out io.Writer) *Server {
	s := &Server{
		tools:     make(map[string]Tool),
		resources: make(map[string]Resource),
		input:     in,
		output:    out,
	}
	s.methods = map[string]methodFunc{
		"initialize":     s.initialize,
		"ping":           func(context.Context, json.RawMessage) (interface{}, *jsonrpcError) { return nil, nil },
		"tools/list":     s.listTools,
		"tools/call":     s.callTool,
		"resources/list": s.listResources,
		"resources/read": s.readResource,
	}
	return s
}

// AddTool registers t, replacing any tool with the same name.
func (s *Server) AddTool(t Tool) {
	s.tools[t.Name] = t
}

// AddResource registers r, replacing any resource with the same URI.
func (s *Server) AddResource(r Resource) {
	s.resources[r.URI] = r
}

// Run serves messages until EOF or until ctx is done, and hands ctx to
// every handler.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.input)
	// signature data URLs make for long lines
	scanner.Buffer(make([]byte, 0, 1<<20), 10<<20)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonrpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(nil, nil, rpcError(codeParseError, "Parse error", err.Error()))
			continue
		}
		s.dispatch(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req jsonrpcRequest) {
	method, ok := s.methods[req.Method]
	if req.isNotification() {
		// notifications/initialized and friends; nothing to answer
		if ok {
			method(ctx, req.Params)
		}
		return
	}
	if !ok {
		s.reply(req.ID, nil, rpcError(codeMethodNotFound, "Method not found", req.Method))
		return
	}

	result, rerr := method(ctx, req.Params)
	if rerr == nil && result == nil {
		result = struct{}{}
	}
	s.reply(req.ID, result, rerr)
}

func (s *Server) initialize(context.Context, json.RawMessage) (interface{}, *jsonrpcError) {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]interface{}{
			"tools":     struct{}{},
			"resources": struct{}{},
		},
		ServerInfo: serverInfo{Name: ServerName, Version: ServerVersion},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (interface{}, *jsonrpcError) {
	tools := make([]Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return map[string][]Tool{"tools": tools}, nil
}

func (s *Server) listResources(context.Context, json.RawMessage) (interface{}, *jsonrpcError) {
	resources := make([]Resource, 0, len(s.resources))
	for _, r := range s.resources {
		resources = append(resources, r)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return map[string][]Resource{"resources": resources}, nil
}

// callTool runs a tool. Handler failures are tool results with IsError set,
// not protocol errors, so the assistant sees the message.
func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (interface{}, *jsonrpcError) {
	var params toolCallParams
	if rerr := decodeParams(raw, &params); rerr != nil {
		return nil, rerr
	}
	tool, ok := s.tools[params.Name]
	if !ok {
		return nil, rpcError(codeInvalidParams, "Unknown tool", params.Name)
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	result, err := tool.Handler(ctx, params.Arguments)
	if err != nil {
		return ToolResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
			IsError: true,
		}, nil
	}
	return result, nil
}

func (s *Server) readResource(ctx context.Context, raw json.RawMessage) (interface{}, *jsonrpcError) {
	var params resourceReadParams
	if rerr := decodeParams(raw, &params); rerr != nil {
		return nil, rerr
	}
	r, ok := s.resources[params.URI]
	if !ok {
		return nil, rpcError(codeInvalidParams, "Unknown resource", params.URI)
	}
	contents, err := r.Handler(ctx, params.URI)
	if err != nil {
		return nil, rpcError(codeInternalError, "Resource error", err.Error())
	}
	return map[string][]ResourceContent{"contents": contents}, nil
}

// reply writes one response line. Exactly one of result and rerr is used.
func (s *Server) reply(id *json.RawMessage, result interface{}, rerr *jsonrpcError) {
	resp := jsonrpcResponse{JSONRPC: "2.0", ID: id}
	if rerr != nil {
		resp.Error = rerr
	} else {
		resp.Result = result
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Encoder appends the newline that frames each message.
	json.NewEncoder(s.output).Encode(resp)
}
