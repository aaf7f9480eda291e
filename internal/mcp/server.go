// Package mcp exposes query building, validation, term expansion and quality
// assessment as Model Context Protocol tools over stdio, together with the
// vocabulary tables as resources and a search-planning prompt.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/vocabulary"
)

// ServerName is the implementation name announced to clients.
const ServerName = "prisma-miner"

// Server wraps the SDK server and the components behind its tools.
type Server struct {
	mcpServer *mcp.Server
	vocab     *vocabulary.Registry
	builder   *query.Builder
	assessor  *quality.Assessor
	logger    *logrus.Logger
}

// NewServer creates a new MCP server with every tool, resource and prompt
// registered. A nil registry selects vocabulary.Default().
func NewServer(vocab *vocabulary.Registry, version string, logger *logrus.Logger) (*Server, error) {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	assessor, err := quality.NewAssessor(vocab)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessor: %w", err)
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
		vocab:     vocab,
		builder:   query.NewBuilder(vocab),
		assessor:  assessor,
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcpServer }

// Start serves over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "build_query",
		Description: "Build boolean search queries for NCBI, SRA, GEO, ENA and BioStudies from organism, condition and experiment terms",
	}, s.handleBuildQuery)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_query",
		Description: "Check a boolean query for balanced parentheses and empty groups",
	}, s.handleValidateQuery)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "expand_term",
		Description: "Expand an organism, condition, experiment or method term into its synonyms",
	}, s.handleExpandTerm)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_records",
		Description: "Score dataset metadata records for completeness and informativeness",
	}, s.handleAssessRecords)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "detect_domain",
		Description: "Report whether an organism is a known plant species or genus",
	}, s.handleDetectDomain)

	s.logger.WithField("tool_count", 5).Debug("Registered MCP tools")
}
