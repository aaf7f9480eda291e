package domain

import "strings"

// TissueConfidence states whether a record's tissue annotation was stated
// upstream or derived from free text.
type TissueConfidence string

const (
	TissueExplicit TissueConfidence = "explicit"
	TissueInferred TissueConfidence = "inferred"
	TissueUnknown  TissueConfidence = "unknown"
)

// Record is normalized metadata for a single item retrieved from a source
// repository. ID is unique within a pipeline run; quality scores are merged
// back onto records by it.
type Record struct {
	SourceDatabase   string            `json:"source_database" yaml:"source_database"`
	ConditionLabel   string            `json:"condition_label" yaml:"condition_label"`
	ID               string            `json:"id" yaml:"id"`
	Title            string            `json:"title" yaml:"title"`
	Description      string            `json:"description" yaml:"description"`
	Organism         string            `json:"organism" yaml:"organism"`
	Tissue           string            `json:"tissue,omitempty" yaml:"tissue,omitempty"`
	TissueConfidence TissueConfidence  `json:"tissue_confidence,omitempty" yaml:"tissue_confidence,omitempty"`
	Extra            map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// RecordField names a scoreable field of a Record.
type RecordField string

const (
	FieldID               RecordField = "id"
	FieldTitle            RecordField = "title"
	FieldDescription      RecordField = "description"
	FieldOrganism         RecordField = "organism"
	FieldSourceDatabase   RecordField = "source_database"
	FieldConditionLabel   RecordField = "condition_label"
	FieldTissue           RecordField = "tissue"
	FieldTissueConfidence RecordField = "tissue_confidence"
	FieldExtra            RecordField = "extra"
)

// Present reports whether s is non-empty after trimming whitespace.
func Present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Filled reports whether the named field is present and non-blank. Extra
// counts as filled when at least one of its values is non-blank.
func (r Record) Filled(field RecordField) bool {
	switch field {
	case FieldID:
		return Present(r.ID)
	case FieldTitle:
		return Present(r.Title)
	case FieldDescription:
		return Present(r.Description)
	case FieldOrganism:
		return Present(r.Organism)
	case FieldSourceDatabase:
		return Present(r.SourceDatabase)
	case FieldConditionLabel:
		return Present(r.ConditionLabel)
	case FieldTissue:
		return Present(r.Tissue)
	case FieldTissueConfidence:
		return Present(string(r.TissueConfidence))
	case FieldExtra:
		for _, v := range r.Extra {
			if Present(v) {
				return true
			}
		}
		return false
	}
	return false
}

// Grade is a letter band derived from a total quality score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Grades lists all grade bands from best to worst.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD, GradeF}

// ComponentScores holds the five quality sub-scores, each in [0,100].
type ComponentScores struct {
	Completeness        float64 `json:"completeness" yaml:"completeness"`
	TitleQuality        float64 `json:"title_quality" yaml:"title_quality"`
	DescriptionQuality  float64 `json:"description_quality" yaml:"description_quality"`
	TissueQuality       float64 `json:"tissue_quality" yaml:"tissue_quality"`
	OrganismSpecificity float64 `json:"organism_specificity" yaml:"organism_specificity"`
}

// QualityScore is the assessment of a single record.
type QualityScore struct {
	RecordID   string          `json:"record_id" yaml:"record_id"`
	TotalScore float64         `json:"total_score" yaml:"total_score"`
	Scores     ComponentScores `json:"scores" yaml:"scores"`
	Grade      Grade           `json:"grade" yaml:"grade"`
}
