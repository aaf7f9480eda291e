// Package quality scores record metadata for completeness and
// informativeness.
package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/vocabulary"
)

// Weights are the fractions applied to each sub-score. They must sum to 1.
type Weights struct {
	Completeness        float64 `json:"completeness"`
	TitleQuality        float64 `json:"title_quality"`
	DescriptionQuality  float64 `json:"description_quality"`
	TissueQuality       float64 `json:"tissue_quality"`
	OrganismSpecificity float64 `json:"organism_specificity"`
}

// DefaultWeights returns the standard rubric weights.
func DefaultWeights() Weights {
	return Weights{
		Completeness:        0.30,
		TitleQuality:        0.20,
		DescriptionQuality:  0.20,
		TissueQuality:       0.20,
		OrganismSpecificity: 0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Completeness + w.TitleQuality + w.DescriptionQuality + w.TissueQuality + w.OrganismSpecificity
}

func (w Weights) apply(s domain.ComponentScores) float64 {
	return s.Completeness*w.Completeness +
		s.TitleQuality*w.TitleQuality +
		s.DescriptionQuality*w.DescriptionQuality +
		s.TissueQuality*w.TissueQuality +
		s.OrganismSpecificity*w.OrganismSpecificity
}

var (
	defaultRequired = []domain.RecordField{
		domain.FieldID, domain.FieldTitle, domain.FieldDescription, domain.FieldOrganism, domain.FieldSourceDatabase,
	}
	defaultOptional = []domain.RecordField{
		domain.FieldTissue, domain.FieldTissueConfidence, domain.FieldExtra,
	}
	missingTissue = map[string]bool{"": true, "unknown": true, "none": true, "na": true}
)

// Option configures an Assessor
type Option func(*Assessor)

// WithWeights overrides the rubric weights.
func WithWeights(w Weights) Option {
	return func(a *Assessor) { a.weights = w }
}

// WithFields overrides the required and optional completeness fields.
func WithFields(required, optional []domain.RecordField) Option {
	return func(a *Assessor) {
		a.required = append([]domain.RecordField(nil), required...)
		a.optional = append([]domain.RecordField(nil), optional...)
	}
}

// Assessor computes weighted quality scores. It is stateless after
// construction and safe to reuse across records.
type Assessor struct {
	weights        Weights
	required       []domain.RecordField
	optional       []domain.RecordField
	titleKeywords  []string
	methodKeywords []string
}

// NewAssessor builds an Assessor over the keyword lists of vocab. A nil
// registry selects vocabulary.Default().
func NewAssessor(vocab *vocabulary.Registry, opts ...Option) (*Assessor, error) {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	a := &Assessor{
		weights:        DefaultWeights(),
		required:       defaultRequired,
		optional:       defaultOptional,
		titleKeywords:  lowerAll(vocab.QualityKeywords()),
		methodKeywords: lowerAll(vocab.MethodKeywords()),
	}
	for _, opt := range opts {
		opt(a)
	}

	if math.Abs(a.weights.Sum()-1.0) > 1e-9 {
		return nil, domain.NewValidationError("weights", fmt.Sprintf("must sum to 1.0, got %.4f", a.weights.Sum()), a.weights)
	}
	if len(a.required) == 0 || len(a.optional) == 0 {
		return nil, domain.NewValidationError("fields", "required and optional field lists must be non-empty", nil)
	}
	return a, nil
}

// Weights returns the configured weights.
func (a *Assessor) Weights() Weights { return a.weights }

// AssessRecord scores a single record. Missing data lowers the affected
// sub-score; it never fails.
func (a *Assessor) AssessRecord(r domain.Record) domain.QualityScore {
	scores := domain.ComponentScores{
		Completeness:        a.completeness(r),
		TitleQuality:        a.title(r.Title),
		DescriptionQuality:  a.description(r.Description),
		TissueQuality:       tissue(r.Tissue, r.TissueConfidence),
		OrganismSpecificity: organism(r.Organism),
	}
	total := clamp(a.weights.apply(scores))

	id := r.ID
	if !domain.Present(id) {
		id = "unknown"
	}
	return domain.QualityScore{
		RecordID:   id,
		TotalScore: total,
		Scores:     scores,
		Grade:      GradeFor(total),
	}
}

func (a *Assessor) completeness(r domain.Record) float64 {
	return clamp(fractionFilled(r, a.required)*70 + fractionFilled(r, a.optional)*30)
}

func fractionFilled(r domain.Record, fields []domain.RecordField) float64 {
	filled := 0
	for _, f := range fields {
		if r.Filled(f) {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

func (a *Assessor) title(title string) float64 {
	if !domain.Present(title) {
		return 0
	}
	score := 30.0
	n := utf8.RuneCountInString(title)
	switch {
	case n >= 40 && n <= 200:
		score += 30
	case n > 20:
		score += 15
	}
	score += math.Min(10*float64(countMatches(title, a.titleKeywords)), 40)
	return clamp(score)
}

func (a *Assessor) description(desc string) float64 {
	if !domain.Present(desc) {
		return 0
	}
	score := 20.0
	n := utf8.RuneCountInString(desc)
	switch {
	case n > 200:
		score += 40
	case n > 100:
		score += 30
	case n > 50:
		score += 20
	default:
		score += 10
	}
	score += math.Min(4*float64(countMatches(desc, a.methodKeywords)), 40)
	return clamp(score)
}

// tissue checks for a missing tissue before looking at confidence, so an
// "unknown" confidence only earns credit when the tissue itself is absent.
func tissue(name string, confidence domain.TissueConfidence) float64 {
	t := strings.ToLower(strings.TrimSpace(name))
	c := strings.ToLower(strings.TrimSpace(string(confidence)))

	if missingTissue[t] {
		if c == string(domain.TissueUnknown) {
			return 30
		}
		return 0
	}
	switch {
	case strings.Contains(c, string(domain.TissueExplicit)):
		return 100
	case strings.Contains(c, string(domain.TissueInferred)):
		return 60
	}
	return 50
}

func organism(name string) float64 {
	parts := strings.Fields(name)
	switch {
	case len(parts) == 0:
		return 0
	case len(parts) >= 2:
		if startsWith(parts[0], unicode.IsUpper) && startsWith(parts[1], unicode.IsLower) {
			return 100
		}
		return 80
	case startsWith(parts[0], unicode.IsUpper):
		return 60
	}
	return 40
}

// GradeFor maps a total score to its letter band.
func GradeFor(score float64) domain.Grade {
	switch {
	case score >= 90:
		return domain.GradeA
	case score >= 80:
		return domain.GradeB
	case score >= 70:
		return domain.GradeC
	case score >= 60:
		return domain.GradeD
	}
	return domain.GradeF
}

func startsWith(s string, pred func(rune) bool) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && pred(r)
}

func countMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
