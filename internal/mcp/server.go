// Package mcp exposes the risk calculator as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Server represents the CVD risk MCP server
type Server struct {
	config     domain.MCPConfig
	calculator domain.RiskCalculator
	mcpServer  *mcp.Server
	validator  binding.StructValidator
	tools      []string
	handlers   map[string]mcp.ToolHandler
	resources  []string
	prompts    []string
	logger     *logrus.Logger
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(cfg domain.MCPConfig, calculator domain.RiskCalculator, logger *logrus.Logger) *Server {
	name := cfg.ServerName
	if name == "" {
		name = "cvd-risk-mcp-server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "v1.0.0"
	}

	s := &Server{
		config:     cfg,
		calculator: calculator,
		mcpServer:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		validator:  binding.Validator,
		handlers:   make(map[string]mcp.ToolHandler),
		logger:     logger,
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	logger.WithFields(logrus.Fields{
		"server_name":    name,
		"tool_count":     len(s.tools),
		"resource_count": len(s.resources),
		"prompt_count":   len(s.prompts),
	}).Info("MCP capabilities registered")
	return s
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

// Run serves the configured transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	var transport mcp.Transport
	switch s.config.TransportType {
	case "", "stdio":
		transport = &mcp.StdioTransport{}
	default:
		return fmt.Errorf("unsupported MCP transport: %s", s.config.TransportType)
	}

	s.logger.WithField("transport_type", "stdio").Info("Starting CVD risk MCP server")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// CallTool invokes a registered tool handler directly, bypassing the transport.
func (s *Server) CallTool(ctx context.Context, name string, arguments []byte) (*mcp.CallToolResult, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: arguments},
	})
}

func (s *Server) addTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mcpServer.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
	s.handlers[tool.Name] = handler
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}
