package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/vocabulary"
)

// BuildQueryParams defines parameters for the build_query tool
type BuildQueryParams struct {
	Organism   string   `json:"organism,omitempty" jsonschema:"binomial organism name, e.g. Arabidopsis thaliana"`
	Condition  string   `json:"condition,omitempty" jsonschema:"experimental condition, e.g. salt stress"`
	Experiment string   `json:"experiment,omitempty" jsonschema:"experiment type, e.g. RNA-seq"`
	Targets    []string `json:"targets,omitempty" jsonschema:"query targets; defaults to every target"`
	ExtraTerms []string `json:"extra_terms,omitempty" jsonschema:"additional terms ANDed onto the query"`
}

// BuildQueryResult defines the result of the build_query tool
type BuildQueryResult struct {
	Expansion query.Expansion `json:"expansion"`
	Queries   []query.Query   `json:"queries"`
}

// ValidateQueryParams defines parameters for the validate_query tool
type ValidateQueryParams struct {
	Query string `json:"query" jsonschema:"boolean query expression"`
}

type ValidateQueryResult struct {
	Query string `json:"query"`
	Valid bool   `json:"valid"`
}

// ExpandTermParams defines parameters for the expand_term tool
type ExpandTermParams struct {
	Kind string `json:"kind" jsonschema:"one of organism, condition, experiment, method"`
	Term string `json:"term" jsonschema:"term to expand"`
}

type ExpandTermResult struct {
	Kind  string   `json:"kind"`
	Term  string   `json:"term"`
	Terms []string `json:"terms"`
}

// RecordInput is a record as supplied by a client; every field is optional.
type RecordInput struct {
	ID               string            `json:"id,omitempty"`
	SourceDatabase   string            `json:"source_database,omitempty"`
	ConditionLabel   string            `json:"condition_label,omitempty"`
	Title            string            `json:"title,omitempty"`
	Description      string            `json:"description,omitempty"`
	Organism         string            `json:"organism,omitempty"`
	Tissue           string            `json:"tissue,omitempty"`
	TissueConfidence string            `json:"tissue_confidence,omitempty" jsonschema:"explicit, inferred or unknown"`
	Extra            map[string]string `json:"extra,omitempty"`
}

func (r RecordInput) record() domain.Record {
	return domain.Record{
		ID:               r.ID,
		SourceDatabase:   r.SourceDatabase,
		ConditionLabel:   r.ConditionLabel,
		Title:            r.Title,
		Description:      r.Description,
		Organism:         r.Organism,
		Tissue:           r.Tissue,
		TissueConfidence: domain.TissueConfidence(r.TissueConfidence),
		Extra:            r.Extra,
	}
}

// AssessRecordsParams defines parameters for the assess_records tool
type AssessRecordsParams struct {
	Records    []RecordInput `json:"records" jsonschema:"records to score"`
	MinQuality float64       `json:"min_quality,omitempty" jsonschema:"optional threshold; records below it are counted as failing"`
}

// ScoredRecord is one record's assessment.
type ScoredRecord struct {
	ID     string                 `json:"id"`
	Total  float64                `json:"total_score"`
	Grade  domain.Grade           `json:"grade"`
	Scores domain.ComponentScores `json:"scores"`
	Passed bool                   `json:"passed"`
}

type AssessRecordsResult struct {
	Records []ScoredRecord `json:"records"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Report  quality.Report `json:"report"`
	Text    string         `json:"text"`
}

type DetectDomainParams struct {
	Organism string `json:"organism" jsonschema:"organism name"`
}

type DetectDomainResult struct {
	Organism string   `json:"organism"`
	Domain   string   `json:"domain"`
	Forms    []string `json:"forms"`
}

func (s *Server) handleBuildQuery(ctx context.Context, req *mcp.CallToolRequest, params BuildQueryParams) (*mcp.CallToolResult, BuildQueryResult, error) {
	s.logger.WithField("tool", "build_query").Info("Tool invoked")

	targets := query.Targets
	if len(params.Targets) > 0 {
		targets = make([]query.Target, 0, len(params.Targets))
		for _, name := range params.Targets {
			t, err := query.ParseTarget(name)
			if err != nil {
				return nil, BuildQueryResult{}, err
			}
			targets = append(targets, t)
		}
	}

	fields := query.Fields{
		Organism:   params.Organism,
		Condition:  params.Condition,
		Experiment: params.Experiment,
		ExtraTerms: params.ExtraTerms,
	}
	queries, err := s.builder.BuildAll(fields, targets...)
	if err != nil {
		return nil, BuildQueryResult{}, err
	}

	result := BuildQueryResult{Expansion: s.builder.Expand(fields), Queries: queries}
	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "%s: %s\n", q.Target, q.Expression)
	}
	return textResult(b.String()), result, nil
}

func (s *Server) handleValidateQuery(ctx context.Context, req *mcp.CallToolRequest, params ValidateQueryParams) (*mcp.CallToolResult, ValidateQueryResult, error) {
	s.logger.WithField("tool", "validate_query").Info("Tool invoked")

	result := ValidateQueryResult{Query: params.Query, Valid: query.Validate(params.Query)}
	text := "Query is valid"
	if !result.Valid {
		text = "Query is malformed: it is blank, has unbalanced parentheses or contains an empty group"
	}
	return textResult(text), result, nil
}

func (s *Server) handleExpandTerm(ctx context.Context, req *mcp.CallToolRequest, params ExpandTermParams) (*mcp.CallToolResult, ExpandTermResult, error) {
	s.logger.WithField("tool", "expand_term").Info("Tool invoked")

	term := strings.TrimSpace(params.Term)
	if term == "" {
		return nil, ExpandTermResult{}, domain.NewValidationError("term", "term is required", params.Term)
	}
	kind := strings.ToLower(strings.TrimSpace(params.Kind))

	var terms []string
	switch kind {
	case "organism":
		terms = vocabulary.ExpandOrganism(term)
	default:
		idx, ok := s.vocab.Index(vocabulary.Kind(kind))
		if !ok {
			return nil, ExpandTermResult{}, domain.NewValidationError("kind", "must be organism, condition, experiment or method", params.Kind)
		}
		terms = idx.Expand(term)
	}

	result := ExpandTermResult{Kind: kind, Term: term, Terms: terms}
	return textResult(strings.Join(terms, "\n")), result, nil
}

func (s *Server) handleAssessRecords(ctx context.Context, req *mcp.CallToolRequest, params AssessRecordsParams) (*mcp.CallToolResult, AssessRecordsResult, error) {
	s.logger.WithFields(logrus.Fields{"tool": "assess_records", "records": len(params.Records)}).Info("Tool invoked")

	if len(params.Records) == 0 {
		return nil, AssessRecordsResult{}, domain.NewValidationError("records", "at least one record is required", nil)
	}
	if params.MinQuality < 0 || params.MinQuality > 100 {
		return nil, AssessRecordsResult{}, domain.NewValidationError("min_quality", "must be between 0 and 100", params.MinQuality)
	}

	records := make([]domain.Record, len(params.Records))
	for i, r := range params.Records {
		records[i] = r.record()
	}
	assessed := s.assessor.AssessCollection(records)

	result := AssessRecordsResult{Records: make([]ScoredRecord, 0, len(assessed))}
	for _, r := range assessed {
		scored := ScoredRecord{
			ID:     r.Quality.RecordID,
			Total:  r.Quality.TotalScore,
			Grade:  r.Quality.Grade,
			Scores: r.Quality.Scores,
			Passed: r.Score() >= params.MinQuality,
		}
		if scored.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Records = append(result.Records, scored)
	}
	result.Report = s.assessor.Report(assessed)
	result.Text = result.Report.Text(time.Now().UTC())
	return textResult(result.Text), result, nil
}

func (s *Server) handleDetectDomain(ctx context.Context, req *mcp.CallToolRequest, params DetectDomainParams) (*mcp.CallToolResult, DetectDomainResult, error) {
	s.logger.WithField("tool", "detect_domain").Info("Tool invoked")

	organism := strings.TrimSpace(params.Organism)
	if organism == "" {
		return nil, DetectDomainResult{}, domain.NewValidationError("organism", "organism is required", params.Organism)
	}
	result := DetectDomainResult{
		Organism: organism,
		Domain:   s.vocab.DetectDomain(organism),
		Forms:    vocabulary.ExpandOrganism(organism),
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, DetectDomainResult{}, err
	}
	return textResult(string(data)), result, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
