package parser

import (
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
)

// GEOParser parses GEO DataSets (gds) esummary documents.
type GEOParser struct {
	base
}

func NewGEOParser(logger *logrus.Logger) *GEOParser {
	return &GEOParser{base: newBase("GEO", logger)}
}

type geoSummary struct {
	Accession    string `json:"accession"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	Taxon        string `json:"taxon"`
	PTechType    string `json:"ptechtype"`
	PlatformTaxa string `json:"platformtaxa"`
	NSamples     int    `json:"n_samples"`
	EntryType    string `json:"entrytype"`
	GSE          string `json:"gse"`
	PDAT         string `json:"pdat"`
	FTPLink      string `json:"ftplink"`
}

func (p *GEOParser) Parse(doc []byte, condition string) ([]domain.Record, error) {
	return p.parseAll(doc, condition, p.parseItem)
}

func (p *GEOParser) parseItem(uid string, raw json.RawMessage) (domain.Record, error) {
	var s geoSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Record{}, err
	}
	id, err := requireID(uid, s.Accession)
	if err != nil {
		return domain.Record{}, err
	}

	description := s.Title
	if domain.Present(s.Summary) {
		description = s.Title + ". " + s.Summary
	}

	return domain.Record{
		ID:          id,
		Title:       clean(s.Title),
		Description: clean(description),
		Organism:    clean(s.Taxon),
		Extra: map[string]string{
			"platform_technology": s.PTechType,
			"platform_organism":   s.PlatformTaxa,
			"n_samples":           strconv.Itoa(s.NSamples),
			"dataset_type":        s.EntryType,
			"gse":                 s.GSE,
			"publication_date":    s.PDAT,
			"ftp_link":            s.FTPLink,
		},
	}, nil
}
