package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/query"
)

const jsonMIME = "application/json"

// Resource URIs served by the vocabulary and quality providers.
const (
	URIConditions  = "vocabulary://conditions"
	URIExperiments = "vocabulary://experiments"
	URIMethods     = "vocabulary://methods"
	URIOrganisms   = "vocabulary://organisms"
	URISampleTypes = "vocabulary://sample-types"
	URIWeights     = "quality://weights"
)

type resourceDef struct {
	resource *mcp.Resource
	content  func() interface{}
}

func (s *Server) resources() []resourceDef {
	return []resourceDef{
		{
			resource: &mcp.Resource{URI: URIConditions, Name: "conditions", Description: "Condition categories with synonyms, in match order"},
			content:  func() interface{} { return s.vocab.Conditions().Categories() },
		},
		{
			resource: &mcp.Resource{URI: URIExperiments, Name: "experiments", Description: "Experiment type categories with synonyms, in match order"},
			content:  func() interface{} { return s.vocab.Experiments().Categories() },
		},
		{
			resource: &mcp.Resource{URI: URIMethods, Name: "methods", Description: "Methodological keyword categories used in description scoring"},
			content:  func() interface{} { return s.vocab.Methods().Categories() },
		},
		{
			resource: &mcp.Resource{URI: URIOrganisms, Name: "organisms", Description: "Model plant organisms recognised by title matching"},
			content:  func() interface{} { return s.vocab.ModelOrganisms() },
		},
		{
			resource: &mcp.Resource{URI: URISampleTypes, Name: "sample-types", Description: "Tissue and sample keywords used for tissue inference"},
			content:  func() interface{} { return s.vocab.SampleTypes() },
		},
		{
			resource: &mcp.Resource{URI: URIWeights, Name: "quality-weights", Description: "Weights of the quality scoring components"},
			content:  func() interface{} { return s.assessor.Weights() },
		},
	}
}

func (s *Server) registerResources() {
	defs := s.resources()
	for _, def := range defs {
		def.resource.MIMEType = jsonMIME
		s.mcpServer.AddResource(def.resource, s.readResource(def))
	}

	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        "plan_search",
		Description: "Plan a systematic dataset search with expanded terms and ready-made queries",
		Arguments: []*mcp.PromptArgument{
			{Name: "organism", Description: "organism name", Required: true},
			{Name: "condition", Description: "experimental condition", Required: true},
			{Name: "experiment", Description: "experiment type"},
		},
	}, s.handlePlanSearch)

	s.logger.WithField("resource_count", len(defs)).Debug("Registered MCP resources")
}

func (s *Server) readResource(def resourceDef) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := json.MarshalIndent(def.content(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", def.resource.URI, err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      def.resource.URI,
				MIMEType: jsonMIME,
				Text:     string(data),
			}},
		}, nil
	}
}

func (s *Server) handlePlanSearch(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	fields := query.Fields{
		Organism:   strings.TrimSpace(args["organism"]),
		Condition:  strings.TrimSpace(args["condition"]),
		Experiment: strings.TrimSpace(args["experiment"]),
	}
	if fields.Organism == "" || fields.Condition == "" {
		return nil, domain.NewValidationError("arguments", "organism and condition are required", args)
	}

	queries, err := s.builder.BuildAll(fields, query.TargetNCBI, query.TargetSRA, query.TargetGEO)
	if err != nil {
		return nil, err
	}
	expansion := s.builder.Expand(fields)

	var b strings.Builder
	fmt.Fprintf(&b, "Plan a systematic search for %s datasets on %s", fields.Organism, fields.Condition)
	if fields.Experiment != "" {
		fmt.Fprintf(&b, " using %s", fields.Experiment)
	}
	b.WriteString(".\n\nExpanded terms:\n")
	fmt.Fprintf(&b, "- organism: %s\n", strings.Join(expansion.Organism, "; "))
	fmt.Fprintf(&b, "- condition: %s\n", strings.Join(expansion.Condition, "; "))
	if len(expansion.Experiment) > 0 {
		fmt.Fprintf(&b, "- experiment: %s\n", strings.Join(expansion.Experiment, "; "))
	}
	b.WriteString("\nQueries:\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "- %s: %s\n", q.Target, q.Expression)
	}
	b.WriteString("\nReview the queries, then score the retrieved records with assess_records. ")
	b.WriteString("Records below 50 are excluded with the reason \"Quality score < 50.0\"; ")
	b.WriteString("report the identified, screened, excluded and included counts.")

	return &mcp.GetPromptResult{
		Description: "Search plan for " + fields.Condition,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: b.String()},
		}},
	}, nil
}
