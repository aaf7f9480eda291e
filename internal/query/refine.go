package query

import "strings"

// Refinement appends Clause to a base query when the experiment term
// contains any of Keywords (case-insensitive).
type Refinement struct {
	Keywords []string
	Clause   string
}

func (r Refinement) matches(experiment string) bool {
	lower := strings.ToLower(experiment)
	for _, k := range r.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// DefaultRefinements holds the per-target clause tables. Rows are checked in
// order and only the first matching row applies.
func DefaultRefinements() map[Target][]Refinement {
	return map[Target][]Refinement{
		TargetSRA: {
			{Keywords: []string{"rna", "transcriptome"}, Clause: " AND strategy_rna_seq[Properties]"},
			{Keywords: []string{"chip"}, Clause: " AND strategy_chip_seq[Properties]"},
			{Keywords: []string{"atac"}, Clause: " AND strategy_atac_seq[Properties]"},
			{Keywords: []string{"bisulfite", "methylation"}, Clause: " AND strategy_bisulfite_seq[Properties]"},
		},
		TargetGEO: {
			{Keywords: []string{"rna"}, Clause: " AND expression profiling by high throughput sequencing[DataSet Type]"},
			{Keywords: []string{"chip"}, Clause: " AND genome binding/occupancy profiling by high throughput sequencing[DataSet Type]"},
			{Keywords: []string{"methylation", "bisulfite"}, Clause: " AND methylation profiling by high throughput sequencing[DataSet Type]"},
			{Keywords: []string{"array"}, Clause: " AND expression profiling by array[DataSet Type]"},
		},
	}
}

func refine(rows []Refinement, experiment string) string {
	for _, r := range rows {
		if r.matches(experiment) {
			return r.Clause
		}
	}
	return ""
}
