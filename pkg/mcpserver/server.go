// Package mcpserver exposes the tool registry over the Model Context Protocol (stdio).
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ilkoid/poncho-fmp/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	ServerName    = "fmp-bridge"
	ServerVersion = "1.0.0"
)

// Server — MCP сервер поверх реестра инструментов.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	logger   *zap.SugaredLogger
}

// New создает MCP сервер и регистрирует в нём все инструменты реестра.
func New(registry *tools.Registry, logger *zap.SugaredLogger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		registry: registry,
		logger:   logger,
	}

	for _, def := range registry.GetDefinitions() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool '%s': marshal schema: %w", def.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), s.handler(def.Name))
	}

	return s, nil
}

// MCP возвращает нижележащий mcp-go сервер.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// handler пересылает аргументы вызова в Tool.Execute.
//
// Ошибка инструмента возвращается как текст с IsError, а не как ошибка
// протокола: агент должен увидеть сообщение и исправить аргументы.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool, err := s.registry.Get(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error calling %s: %v", name, err)), nil
		}

		s.logger.Debugw("Tool call", "tool", name, "args", string(args))
		text, err := tool.Execute(ctx, string(args))
		if err != nil {
			s.logger.Warnw("Tool call rejected", "tool", name, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("Error calling %s: %v", name, err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// ServeStdio обслуживает MCP по stdin/stdout до отмены контекста или EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Desugar()))

	s.logger.Infow("MCP stdio server started", "tools", s.registry.Len())
	err := stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
