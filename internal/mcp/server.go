// Package mcp serves the tool handler over the Model Context Protocol
// stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/tools"
)

const instructions = "List or search emails and appointments first; the " +
	"by-number tools refer to the most recent listing of that kind."

// ToolHandler executes the tools advertised by the server.
type ToolHandler interface {
	Tools() []tools.Tool
	Call(ctx context.Context, name string, raw json.RawMessage) (tools.Result, error)
}

// ServerInfo identifies the server to clients.
type ServerInfo struct {
	Name    string
	Version string
}

// Server exposes a ToolHandler as MCP tools.
type Server struct {
	mcp *server.MCPServer
	log *log.Entry
}

// NewServer registers every tool of handler.
func NewServer(handler ToolHandler, info ServerInfo, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger = logger.WithField("component", "mcp")

	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(
		_ context.Context, _ any, req *mcpgo.InitializeRequest, res *mcpgo.InitializeResult,
	) {
		logger.WithFields(log.Fields{
			"client":   req.Params.ClientInfo.Name,
			"version":  req.Params.ClientInfo.Version,
			"protocol": res.ProtocolVersion,
		}).Info("client connected")
	})
	hooks.AddOnError(func(
		_ context.Context, _ any, method mcpgo.MCPMethod, _ any, err error,
	) {
		logger.WithError(err).WithField("method", method).Warn("request failed")
	})

	s := server.NewMCPServer(info.Name, info.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithHooks(hooks),
	)
	for _, t := range handler.Tools() {
		s.AddTool(
			mcpgo.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema),
			callTool(handler, t.Name),
		)
	}

	return &Server{mcp: s, log: logger}
}

// callTool adapts one tool of handler. Tool failures come back as
// results with isError set, never as protocol errors.
func callTool(handler ToolHandler, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		raw, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return nil, fmt.Errorf("encoding arguments for %s: %w", name, err)
		}

		res, err := handler.Call(ctx, name, raw)
		if err != nil {
			return nil, err
		}
		if res.IsError {
			return mcpgo.NewToolResultError(res.Text), nil
		}
		return mcpgo.NewToolResultText(res.Text), nil
	}
}

// Serve answers requests read from r on w until r is exhausted or ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	errLog := s.log.WriterLevel(log.ErrorLevel)
	defer errLog.Close()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(errLog, "", 0))

	s.log.Info("serving on stdio")
	return stdio.Listen(ctx, r, w)
}
