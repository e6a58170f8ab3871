// Package mcpserver exposes the Qarnot tools over the Model Context
// Protocol. It owns the process-wide connection to the Qarnot service,
// created lazily on the first tool call.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/chloepilonv/mcp-server-qarnot/internal/config"
	"github.com/chloepilonv/mcp-server-qarnot/internal/qarnot"
	"github.com/chloepilonv/mcp-server-qarnot/pkg/metricskey"
	"github.com/chloepilonv/mcp-server-qarnot/tools"
	"github.com/chloepilonv/mcp-server-qarnot/tools/qstorage"
	"github.com/chloepilonv/mcp-server-qarnot/tools/qtasks"
	"github.com/chloepilonv/mcp-server-qarnot/utils"
)

var logger = xlog.NewPackageLogger("github.com/chloepilonv/mcp-server-qarnot", "mcpserver")

const serverName = "qarnot"

// Server registers the Qarnot tools on an MCP server.
type Server struct {
	srv      *server.MCPServer
	tools    []tools.ITool
	callback tools.Callback

	conn qarnot.Provider
}

// Option is an option for the Server.
type Option func(*Server)

// WithCallback sets the callback observing tool invocations.
func WithCallback(cb tools.Callback) Option {
	return func(s *Server) {
		s.callback = cb
	}
}

// WithConnection overrides the lazily dialed connection. Used in tests.
func WithConnection(conn qarnot.Connection) Option {
	return func(s *Server) {
		s.conn = qarnot.Static(conn)
	}
}

// New creates the MCP server with all Qarnot tools registered.
func New(cfg *config.Config, version string, opts ...Option) (*Server, error) {
	s := &Server{
		conn: qarnot.Lazy(func() (qarnot.Connection, error) {
			return qarnot.New(cfg.Token,
				qarnot.WithClusterURL(cfg.ClusterURL),
				qarnot.WithStorageURL(cfg.StorageURL),
			)
		}),
	}
	for _, opt := range opts {
		opt(s)
	}

	taskTools, err := qtasks.New(s.conn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task tools")
	}
	storageTools, err := qstorage.New(s.conn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage tools")
	}
	s.tools = append(taskTools, storageTools...)

	s.srv = server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range s.tools {
		s.register(t)
	}
	return s, nil
}

// Tools returns the registered tools.
func (s *Server) Tools() []tools.ITool {
	return s.tools
}

// ServeStdio serves MCP requests on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	logger.KV(xlog.INFO, "event", "serving", "transport", "stdio", "tools", len(s.tools))
	return server.ServeStdio(s.srv)
}

func (s *Server) register(t tools.ITool) {
	raw, _ := json.Marshal(t.Parameters())
	s.srv.AddTool(
		mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw),
		s.handler(t),
	)
}

func (s *Server) handler(t tools.ITool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := utils.ToJSON(req.GetArguments())
		if s.callback != nil {
			s.callback.OnToolStart(ctx, t, input)
		}

		started := time.Now()
		out, err := t.Call(ctx, input)
		metricskey.PerfToolCall.MeasureSince(started, t.Name())

		if err != nil {
			if errors.Is(err, qarnot.ErrNotFound) {
				metricskey.StatsToolCallsNotFound.IncrCounter(1, t.Name())
			}
			metricskey.StatsToolCallsFailed.IncrCounter(1, t.Name())
			if s.callback != nil {
				s.callback.OnToolError(ctx, t, input, err)
			}
			return mcp.NewToolResultError(err.Error()), nil
		}

		metricskey.StatsToolCallsSucceeded.IncrCounter(1, t.Name())
		if s.callback != nil {
			s.callback.OnToolEnd(ctx, t, input, out)
		}
		return mcp.NewToolResultText(out), nil
	}
}
