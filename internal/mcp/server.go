// Package mcp exposes the granule store over the Model Context Protocol
// (JSON-RPC 2.0, one message per line on stdio).
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ghrcdaac/granuledb/internal/logging"
	"github.com/ghrcdaac/granuledb/internal/store"
	"github.com/ghrcdaac/granuledb/internal/telemetry"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "granuledb"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type Server struct {
	store    store.Store
	version  string
	logger   *slog.Logger
	reporter *telemetry.Reporter
	reader   *bufio.Reader
	writer   io.Writer
	mu       sync.Mutex
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    ServerCapability `json:"capabilities"`
	ServerInfo      ServerInfo       `json:"serverInfo"`
}

type ServerCapability struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Items       *Items `json:"items,omitempty"`
}

type Items struct {
	Type string `json:"type"`
}

type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewServer serves s on stdin/stdout. logger and reporter may be nil.
func NewServer(s store.Store, version string, logger *slog.Logger, reporter *telemetry.Reporter) *Server {
	return &Server{
		store:    s,
		version:  version,
		logger:   logging.NewComponentLogger(logger, "mcp"),
		reporter: reporter,
		reader:   bufio.NewReader(os.Stdin),
		writer:   os.Stdout,
	}
}

// SetIO replaces the transport streams.
func (s *Server) SetIO(r io.Reader, w io.Writer) {
	s.reader = bufio.NewReader(r)
	s.writer = w
}

// Run serves requests until the input closes or ctx is cancelled. A
// cancelled context is noticed between messages.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			s.handleLine(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debug("unparseable request", logging.Error(err))
		s.sendError(nil, codeParseError, "Parse error", nil)
		return
	}
	s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		// notification
	case "tools/list":
		s.sendResult(req.ID, map[string]any{"tools": toolDefinitions()})
	case "tools/call":
		s.handleToolCall(ctx, req)
	case "ping":
		s.sendResult(req.ID, map[string]any{})
	default:
		s.sendError(req.ID, codeMethodNotFound, "Method not found", nil)
	}
}

func (s *Server) handleInitialize(req *Request) {
	s.sendResult(req.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapability{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: s.version,
		},
	})
}

func (s *Server) handleToolCall(ctx context.Context, req *Request) {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", nil)
		return
	}
	s.reporter.TrackMCPTool(params.Name)
	s.logger.Debug("tool call", logging.String("tool", params.Name))
	s.sendResult(req.ID, s.callTool(ctx, params.Name, params.Arguments))
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]any) ToolResult {
	switch name {
	case "classify":
		return s.toolClassify(ctx, args)
	case "insert_strict":
		return s.toolInsertStrict(ctx, args)
	case "replace":
		return s.toolReplace(ctx, args)
	case "delete":
		return s.toolDelete(ctx, args)
	case "match":
		return s.toolMatch(ctx, args)
	case "status":
		return s.toolStatus(ctx)
	default:
		return errorResult("Unknown tool: " + name)
	}
}

func (s *Server) sendResult(id any, result any) {
	s.send(Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *Server) sendError(id any, code int, message string, data any) {
	s.send(Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}

func (s *Server) send(resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", logging.Error(err))
		return
	}
	fmt.Fprintf(s.writer, "%s\n", data)
}
