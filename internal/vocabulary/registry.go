package vocabulary

import (
	"fmt"
	"strings"
	"sync"
)

// Kind selects one of the synonym registries.
type Kind string

const (
	KindCondition  Kind = "condition"
	KindExperiment Kind = "experiment"
	KindMethod     Kind = "method"
)

// Domain values returned by DetectDomain.
const (
	DomainPlant   = "plant"
	DomainUnknown = "unknown"
)

// Registry bundles the synonym indexes and keyword lists. It has no mutation
// API; build it once and share it.
type Registry struct {
	conditions     *Index
	experiments    *Index
	methods        *Index
	qualityWords   []string
	methodWords    []string
	sampleTypes    []string
	modelOrganisms []string
	genusHints     []string
}

// Tables is the raw input for NewRegistry.
type Tables struct {
	Conditions      []Category
	Experiments     []Category
	Methods         []Category
	QualityKeywords []string
	SampleTypes     []string
	ModelOrganisms  []string
	GenusHints      []string
}

// NewRegistry validates and indexes the given tables.
func NewRegistry(t Tables) (*Registry, error) {
	conditions, err := NewIndex("conditions", t.Conditions...)
	if err != nil {
		return nil, err
	}
	experiments, err := NewIndex("experiments", t.Experiments...)
	if err != nil {
		return nil, err
	}
	methods, err := NewIndex("methods", t.Methods...)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		conditions:     conditions,
		experiments:    experiments,
		methods:        methods,
		qualityWords:   append([]string(nil), t.QualityKeywords...),
		sampleTypes:    append([]string(nil), t.SampleTypes...),
		modelOrganisms: append([]string(nil), t.ModelOrganisms...),
		genusHints:     append([]string(nil), t.GenusHints...),
	}
	// Flattened in table order; duplicates across categories are kept.
	for _, c := range t.Methods {
		r.methodWords = append(r.methodWords, c.Synonyms...)
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(Tables{
		Conditions:      conditionTable,
		Experiments:     experimentTable,
		Methods:         methodTable,
		QualityKeywords: append(append([]string(nil), generalQualityKeywords...), plantQualityKeywords...),
		SampleTypes:     sampleTypeKeywords,
		ModelOrganisms:  modelPlantOrganisms,
		GenusHints:      plantGenusIndicators,
	})
	if err != nil {
		panic(fmt.Sprintf("vocabulary: invalid default tables: %v", err))
	}
	return r
})

// Default returns the built-in plant biology registry.
func Default() *Registry {
	return defaultRegistry()
}

// Conditions returns the condition/treatment index.
func (r *Registry) Conditions() *Index { return r.conditions }

// Experiments returns the experiment/assay index.
func (r *Registry) Experiments() *Index { return r.experiments }

// Methods returns the methodological keyword index.
func (r *Registry) Methods() *Index { return r.methods }

// Index returns the index for kind.
func (r *Registry) Index(kind Kind) (*Index, bool) {
	switch kind {
	case KindCondition:
		return r.conditions, true
	case KindExperiment:
		return r.experiments, true
	case KindMethod:
		return r.methods, true
	}
	return nil, false
}

// ExpandCondition expands a condition term through the condition index.
func (r *Registry) ExpandCondition(term string) []string {
	return r.conditions.Expand(term)
}

// ExpandExperiment expands an experiment term through the experiment index.
func (r *Registry) ExpandExperiment(term string) []string {
	return r.experiments.Expand(term)
}

// QualityKeywords returns the general and plant-specific title keywords.
func (r *Registry) QualityKeywords() []string {
	return append([]string(nil), r.qualityWords...)
}

// MethodKeywords returns every methodological keyword, flattened.
func (r *Registry) MethodKeywords() []string {
	return append([]string(nil), r.methodWords...)
}

// SampleTypes returns the tissue/sample keywords.
func (r *Registry) SampleTypes() []string {
	return append([]string(nil), r.sampleTypes...)
}

// ModelOrganisms returns the known model plant organisms.
func (r *Registry) ModelOrganisms() []string {
	return append([]string(nil), r.modelOrganisms...)
}

// DetectDomain returns DomainPlant when organism names a known plant
// species or genus.
func (r *Registry) DetectDomain(organism string) string {
	lower := strings.ToLower(organism)
	if strings.TrimSpace(lower) == "" {
		return DomainUnknown
	}
	for _, o := range r.modelOrganisms {
		if strings.Contains(lower, strings.ToLower(o)) {
			return DomainPlant
		}
	}
	for _, g := range r.genusHints {
		if strings.Contains(lower, g) {
			return DomainPlant
		}
	}
	return DomainUnknown
}

// ExpandOrganism returns the organism name plus, for binomials, the
// abbreviated "G. species" form and the genus alone.
func ExpandOrganism(organism string) []string {
	organism = strings.TrimSpace(organism)
	parts := strings.Fields(organism)
	if len(parts) < 2 {
		return []string{organism}
	}
	initial := []rune(parts[0])[0]
	return []string{
		organism,
		fmt.Sprintf("%c. %s", initial, parts[1]),
		parts[0],
	}
}
