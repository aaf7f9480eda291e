package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/vocabulary"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	server, err := NewServer(nil, "test", logger)
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)
	assert.NotNil(t, server.MCPServer())
	assert.NotNil(t, server.builder)
	assert.NotNil(t, server.assessor)
}

func TestHandleBuildQuery(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, result, err := server.handleBuildQuery(ctx, nil, BuildQueryParams{
		Organism:   "Oryza sativa",
		Condition:  "drought",
		Experiment: "ChIP-seq",
		Targets:    []string{"sra", "biostudies"},
	})
	require.NoError(t, err)
	require.Len(t, result.Queries, 2)
	assert.Equal(t, query.TargetSRA, result.Queries[0].Target)
	assert.Contains(t, result.Queries[0].Expression, "Oryza sativa[Organism]")
	assert.Contains(t, result.Queries[0].Expression, "strategy_chip_seq[Properties]")
	assert.Equal(t, "100", result.Queries[1].Params["pageSize"])

	_, _, err = server.handleBuildQuery(ctx, nil, BuildQueryParams{Targets: []string{"ncbi"}})
	assert.True(t, domain.IsValidationError(err))

	_, _, err = server.handleBuildQuery(ctx, nil, BuildQueryParams{Organism: "Zea mays", Targets: []string{"scopus"}})
	assert.True(t, domain.IsValidationError(err))
}

func TestHandleValidateQuery(t *testing.T) {
	server := newTestServer(t)

	res, result, err := server.handleValidateQuery(context.Background(), nil, ValidateQueryParams{Query: "(salt) AND ()"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "malformed")

	_, result, err = server.handleValidateQuery(context.Background(), nil, ValidateQueryParams{Query: "(salt) AND (root)"})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestHandleExpandTerm(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, result, err := server.handleExpandTerm(ctx, nil, ExpandTermParams{Kind: "organism", Term: "Zea mays"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zea mays", "Z. mays", "Zea"}, result.Terms)

	_, result, err = server.handleExpandTerm(ctx, nil, ExpandTermParams{Kind: "Condition", Term: "drought"})
	require.NoError(t, err)
	assert.Equal(t, "condition", result.Kind)
	assert.Contains(t, result.Terms, "water deficit")

	_, _, err = server.handleExpandTerm(ctx, nil, ExpandTermParams{Kind: "gene", Term: "PHO1"})
	assert.True(t, domain.IsValidationError(err))

	_, _, err = server.handleExpandTerm(ctx, nil, ExpandTermParams{Kind: "organism", Term: " "})
	assert.True(t, domain.IsValidationError(err))
}

func TestHandleAssessRecords(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, result, err := server.handleAssessRecords(ctx, nil, AssessRecordsParams{
		MinQuality: 40,
		Records: []RecordInput{
			{
				ID: "GSE1", SourceDatabase: "GEO", ConditionLabel: "drought",
				Title:       "Transcriptome analysis of maize leaves under drought stress",
				Description: "RNA-seq of leaf tissue from Zea mays plants grown under water deficit for ten days, sequenced on Illumina HiSeq and analyzed for differential expression.",
				Organism:    "Zea mays", Tissue: "leaf", TissueConfidence: "explicit",
				Extra: map[string]string{"gse": "1"},
			},
			{SourceDatabase: "GEO"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "GSE1", result.Records[0].ID)
	assert.True(t, result.Records[0].Passed)
	assert.Equal(t, "unknown", result.Records[1].ID)
	assert.False(t, result.Records[1].Passed)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Report.Count)
	assert.NotEmpty(t, result.Text)

	_, _, err = server.handleAssessRecords(ctx, nil, AssessRecordsParams{})
	assert.True(t, domain.IsValidationError(err))

	_, _, err = server.handleAssessRecords(ctx, nil, AssessRecordsParams{Records: []RecordInput{{ID: "x"}}, MinQuality: 101})
	assert.True(t, domain.IsValidationError(err))
}

func TestHandleDetectDomain(t *testing.T) {
	server := newTestServer(t)

	_, result, err := server.handleDetectDomain(context.Background(), nil, DetectDomainParams{Organism: "Solanum lycopersicum"})
	require.NoError(t, err)
	assert.Equal(t, "plant", result.Domain)

	_, result, err = server.handleDetectDomain(context.Background(), nil, DetectDomainParams{Organism: "Mus musculus"})
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.Domain)
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"build_query", "validate_query", "expand_term", "assess_records", "detect_domain"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_domain",
		Arguments: map[string]interface{}{"organism": "Oryza sativa"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)

	var detected DetectDomainResult
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &detected))
	assert.Equal(t, "plant", detected.Domain)
	assert.Equal(t, []string{"Oryza sativa", "O. sativa", "Oryza"}, detected.Forms)
}

func connectClient(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestVocabularyResources(t *testing.T) {
	session := connectClient(t, newTestServer(t))
	ctx := context.Background()

	listed, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	var uris []string
	for _, r := range listed.Resources {
		uris = append(uris, r.URI)
	}
	assert.ElementsMatch(t, []string{URIConditions, URIExperiments, URIMethods, URIOrganisms, URISampleTypes, URIWeights}, uris)

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: URIConditions})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var categories []vocabulary.Category
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &categories))
	assert.Len(t, categories, 29)

	res, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: URIWeights})
	require.NoError(t, err)
	var weights quality.Weights
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &weights))
	assert.InDelta(t, 0.30, weights.Completeness, 1e-9)
}

func TestPlanSearchPrompt(t *testing.T) {
	session := connectClient(t, newTestServer(t))
	ctx := context.Background()

	prompts, err := session.ListPrompts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, prompts.Prompts, 1)
	assert.Equal(t, "plan_search", prompts.Prompts[0].Name)

	res, err := session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "plan_search",
		Arguments: map[string]string{"organism": "Arabidopsis thaliana", "condition": "salt stress", "experiment": "RNA-seq"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Plan a systematic search for Arabidopsis thaliana datasets on salt stress using RNA-seq")
	assert.Contains(t, text, "- sra: ")
	assert.Contains(t, text, "Arabidopsis thaliana[Organism]")
}

func TestPlanSearchPromptRequiresArguments(t *testing.T) {
	server := newTestServer(t)
	req := &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "plan_search", Arguments: map[string]string{"organism": "rice"}}}

	_, err := server.handlePlanSearch(context.Background(), req)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}
