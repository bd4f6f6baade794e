// Package mcp exposes the sync manager as tools over a stdio JSON-RPC
// server speaking the Model Context Protocol.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/internal/clients/google"
	"github.com/tazhate/icalsync/internal/domain"
	"github.com/tazhate/icalsync/internal/syncer"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "icloud-gcal-sync"
	serverVersion   = "1.0.0"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Items       *Property `json:"items,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GoogleAPI is the part of the Google client the tools need directly.
type GoogleAPI interface {
	IsConfigured() bool
	ListCalendars(ctx context.Context) ([]google.CalendarListEntry, error)
	CreateEvent(ctx context.Context, calendarID string, ev domain.CanonicalEvent) (string, error)
	DeleteEvent(ctx context.Context, calendarID, remoteID string) error
}

// Server handles MCP requests over stdin/stdout.
type Server struct {
	manager *syncer.Manager
	google  GoogleAPI
	in      io.Reader
	out     io.Writer
	log     *zap.Logger
}

// NewServer creates an MCP server bound to the given streams.
func NewServer(manager *syncer.Manager, googleClient GoogleAPI, in io.Reader, out io.Writer, log *zap.Logger) *Server {
	return &Server{
		manager: manager,
		google:  googleClient,
		in:      in,
		out:     out,
		log:     log,
	}
}

// Run reads newline-delimited JSON-RPC requests until EOF or context
// cancellation.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.log.Warn("invalid JSON-RPC request", zap.Error(err))
			continue
		}

		resp := s.handleRequest(ctx, req)
		out, err := json.Marshal(resp)
		if err != nil {
			s.log.Error("marshal response", zap.Error(err))
			continue
		}
		fmt.Fprintln(s.out, string(out))
	}
}

func (s *Server) handleRequest(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: s.tools()}}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = serverName
	result.ServerInfo.Version = serverVersion

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) handleToolsCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	text, isError := s.callTool(ctx, params.Name, params.Arguments)

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
			IsError: isError,
		},
	}
}

// prettyJSON renders a value for tool output.
func prettyJSON(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
