package parser

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
)

// BioProjectParser parses BioProject esummary documents. BioProject
// summaries carry no tissue annotation.
type BioProjectParser struct {
	base
}

func NewBioProjectParser(logger *logrus.Logger) *BioProjectParser {
	return &BioProjectParser{base: newBase("BioProject", logger)}
}

type bioProjectSummary struct {
	ProjectAcc         string `json:"project_acc"`
	ProjectTitle       string `json:"project_title"`
	ProjectDescription string `json:"project_description"`
	OrganismName       string `json:"organism_name"`
	ProjectDataType    string `json:"project_data_type"`
	RegistrationDate   string `json:"registration_date"`
	ProjectSubtype     string `json:"project_subtype"`
}

func (p *BioProjectParser) Parse(doc []byte, condition string) ([]domain.Record, error) {
	return p.parseAll(doc, condition, p.parseItem)
}

func (p *BioProjectParser) parseItem(uid string, raw json.RawMessage) (domain.Record, error) {
	var s bioProjectSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Record{}, err
	}
	id, err := requireID(uid, s.ProjectAcc)
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		ID:          id,
		Title:       clean(s.ProjectTitle),
		Description: clean(s.ProjectDescription),
		Organism:    clean(s.OrganismName),
		Extra: map[string]string{
			"project_data_type": s.ProjectDataType,
			"registration_date": s.RegistrationDate,
			"project_subtype":   s.ProjectSubtype,
		},
	}, nil
}
