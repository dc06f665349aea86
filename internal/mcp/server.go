// Package mcp exposes the patient workflows as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/api"
	"github.com/heart-intake-server/internal/domain"
)

// Server represents the heart intake MCP server
type Server struct {
	config    domain.ConfigManager
	patients  api.PatientWorkflows
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with every patient tool registered
func NewServer(configManager domain.ConfigManager, patients api.PatientWorkflows, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	serverInfo := &mcp.Implementation{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}

	server := &Server{
		config:    configManager,
		patients:  patients,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	server.registerTools()

	return server
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("model", s.patients.ModelName()).Info("Starting heart intake MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the patient tools
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListPatients,
		Description: "List every stored patient with its clinical features and diagnostic outcome, in insertion order.",
	}, s.handleListPatients)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCreatePatient,
		Description: "Store a new patient. The diagnostic outcome is predicted once from the 13 clinical features. Names must be unique.",
	}, s.handleCreatePatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGetPatient,
		Description: "Fetch one patient by exact, case-sensitive name.",
	}, s.handleGetPatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolDeletePatient,
		Description: "Delete one patient by exact, case-sensitive name.",
	}, s.handleDeletePatient)

	s.logger.WithField("tool_count", 4).Debug("Registered MCP tools")
}
