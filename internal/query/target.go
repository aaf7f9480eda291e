package query

import (
	"fmt"
	"strings"

	"github.com/prisma-miner/internal/domain"
)

// Target identifies a query syntax.
type Target string

const (
	TargetNCBI       Target = "ncbi"
	TargetBioProject Target = "bioproject"
	TargetPubMed     Target = "pubmed"
	TargetSRA        Target = "sra"
	TargetGEO        Target = "gds"
	TargetENA        Target = "ena"
	TargetBioStudies Target = "biostudies"
)

// Targets lists every supported target.
var Targets = []Target{
	TargetNCBI, TargetBioProject, TargetPubMed, TargetSRA, TargetGEO, TargetENA, TargetBioStudies,
}

// ParseTarget resolves a target name. "geo" is accepted for TargetGEO.
func ParseTarget(name string) (Target, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "geo" {
		return TargetGEO, nil
	}
	for _, t := range Targets {
		if string(t) == n {
			return t, nil
		}
	}
	return "", domain.NewValidationError("target", fmt.Sprintf("unsupported target %q", name), name)
}

// Structured reports whether the target takes a parameter map instead of a
// single boolean string.
func (t Target) Structured() bool {
	return t == TargetENA || t == TargetBioStudies
}

// tagsOrganism reports whether organism terms get the [Organism] field tag.
func (t Target) tagsOrganism() bool {
	switch t {
	case TargetNCBI, TargetBioProject, TargetPubMed, TargetSRA, TargetGEO:
		return true
	}
	return false
}
