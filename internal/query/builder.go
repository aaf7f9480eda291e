// Package query assembles boolean search expressions for biomedical
// repositories from organism, condition and experiment terms.
package query

import (
	"fmt"
	"strings"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/vocabulary"
)

const organismTag = "[Organism]"

// Fields are the user-facing inputs of a search.
type Fields struct {
	Organism   string   `json:"organism"`
	Condition  string   `json:"condition"`
	Experiment string   `json:"experiment"`
	ExtraTerms []string `json:"extra_terms,omitempty"`
}

// Expansion is the per-field term list before target formatting.
type Expansion struct {
	Organism   []string `json:"organism"`
	Condition  []string `json:"condition"`
	Experiment []string `json:"experiment"`
	Extra      []string `json:"extra,omitempty"`
}

// Query is a built search for one target. Text targets carry only
// Expression; structured targets also carry Params.
type Query struct {
	Target     Target            `json:"target"`
	Expression string            `json:"expression"`
	Params     map[string]string `json:"params,omitempty"`
}

// String returns the boolean expression.
func (q Query) String() string {
	return q.Expression
}

// Option configures a Builder
type Option func(*Builder)

// WithRefinements replaces the refinement rows for target. Passing no rows
// disables refinement for it.
func WithRefinements(target Target, rows ...Refinement) Option {
	return func(b *Builder) {
		b.refinements[target] = rows
	}
}

// Builder expands terms through a vocabulary registry and formats them per
// target. It holds no per-query state.
type Builder struct {
	vocab       *vocabulary.Registry
	refinements map[Target][]Refinement
}

// NewBuilder creates a Builder. A nil registry selects vocabulary.Default().
func NewBuilder(vocab *vocabulary.Registry, opts ...Option) *Builder {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	b := &Builder{
		vocab:       vocab,
		refinements: DefaultRefinements(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Expand returns the expanded terms of every non-blank field.
func (b *Builder) Expand(f Fields) Expansion {
	var e Expansion
	if domain.Present(f.Organism) {
		e.Organism = vocabulary.ExpandOrganism(f.Organism)
	}
	if domain.Present(f.Condition) {
		e.Condition = b.vocab.ExpandCondition(strings.TrimSpace(f.Condition))
	}
	if domain.Present(f.Experiment) {
		e.Experiment = b.vocab.ExpandExperiment(strings.TrimSpace(f.Experiment))
	}
	for _, t := range f.ExtraTerms {
		if domain.Present(t) {
			e.Extra = append(e.Extra, strings.TrimSpace(t))
		}
	}
	return e
}

// Build produces the query for target. Aliases and letter case are
// normalised as in ParseTarget. It fails with a validation error if no field
// is set or the result is malformed.
func (b *Builder) Build(f Fields, target Target) (Query, error) {
	t, err := ParseTarget(string(target))
	if err != nil {
		return Query{}, err
	}
	target = t

	e := b.Expand(f)
	organism := e.Organism
	if target.tagsOrganism() {
		organism = make([]string, len(e.Organism))
		for i, term := range e.Organism {
			organism[i] = term + organismTag
		}
	}

	var parts []string
	for _, group := range [][]string{organism, e.Condition, e.Experiment} {
		if len(group) > 0 {
			parts = append(parts, "("+strings.Join(group, " OR ")+")")
		}
	}
	for _, term := range e.Extra {
		parts = append(parts, "("+term+")")
	}
	if len(parts) == 0 {
		return Query{}, domain.NewValidationError("fields", "at least one search term is required", f)
	}

	expr := strings.Join(parts, " AND ")
	if !target.Structured() {
		expr += refine(b.refinements[target], f.Experiment)
	}
	if !Validate(expr) {
		return Query{}, domain.NewValidationError("query", "malformed query expression", expr)
	}

	q := Query{Target: target, Expression: expr}
	switch target {
	case TargetENA:
		q.Params = map[string]string{
			"query":  expr,
			"result": "read_run",
			"fields": "all",
			"format": "json",
			"limit":  "0",
		}
	case TargetBioStudies:
		q.Params = map[string]string{
			"query":    expr,
			"pageSize": "100",
			"page":     "1",
		}
	}
	return q, nil
}

// BuildAll builds one query per target, in order.
func (b *Builder) BuildAll(f Fields, targets ...Target) ([]Query, error) {
	out := make([]Query, 0, len(targets))
	for _, t := range targets {
		q, err := b.Build(f, t)
		if err != nil {
			return nil, fmt.Errorf("build %s query: %w", t, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// Validate rejects blank input, unbalanced parenthesis counts and empty
// groups "()".
func Validate(query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	if strings.Count(query, "(") != strings.Count(query, ")") {
		return false
	}
	return !strings.Contains(query, "()")
}
