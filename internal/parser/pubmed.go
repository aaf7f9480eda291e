package parser

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/vocabulary"
)

const maxListedAuthors = 3

// PubMedParser parses PubMed esummary documents. The organism is taken
// from the first model organism named in the title.
type PubMedParser struct {
	base
	organisms []string
}

// NewPubMedParser uses vocab's model organism list; nil selects the
// default registry.
func NewPubMedParser(vocab *vocabulary.Registry, logger *logrus.Logger) *PubMedParser {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	return &PubMedParser{
		base:      newBase("PubMed", logger),
		organisms: vocab.ModelOrganisms(),
	}
}

type pubMedSummary struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	Source          string `json:"source"`
	FullJournalName string `json:"fulljournalname"`
	PubDate         string `json:"pubdate"`
	EPubDate        string `json:"epubdate"`
	Authors         []struct {
		Name     string `json:"name"`
		AuthType string `json:"authtype"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

func (s pubMedSummary) authorNames() []string {
	names := make([]string, 0, len(s.Authors))
	for _, a := range s.Authors {
		if domain.Present(a.Name) {
			names = append(names, strings.TrimSpace(a.Name))
		}
	}
	return names
}

func (s pubMedSummary) doi() string {
	for _, id := range s.ArticleIDs {
		if strings.EqualFold(id.IDType, "doi") {
			return id.Value
		}
	}
	return ""
}

func (p *PubMedParser) Parse(doc []byte, condition string) ([]domain.Record, error) {
	return p.parseAll(doc, condition, p.parseItem)
}

func (p *PubMedParser) parseItem(uid string, raw json.RawMessage) (domain.Record, error) {
	var s pubMedSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Record{}, err
	}
	pmid, err := requireID(uid, s.UID)
	if err != nil {
		return domain.Record{}, err
	}

	names := s.authorNames()
	authors := strings.Join(names[:min(len(names), maxListedAuthors)], ", ")
	if len(names) > maxListedAuthors {
		authors += ", et al."
	}
	firstAuthor := ""
	if len(names) > 0 {
		firstAuthor = names[0]
	}

	var parts []string
	if authors != "" {
		parts = append(parts, authors)
	}
	if domain.Present(s.Source) {
		parts = append(parts, s.Source)
	}
	if domain.Present(s.PubDate) {
		parts = append(parts, "("+s.PubDate+")")
	}

	return domain.Record{
		ID:          "PMID:" + pmid,
		Title:       clean(s.Title),
		Description: clean(strings.Join(parts, ". ")),
		Organism:    p.organismIn(s.Title),
		Extra: map[string]string{
			"authors":          authors,
			"first_author":     firstAuthor,
			"journal":          firstNonBlank(s.FullJournalName, s.Source),
			"publication_date": s.PubDate,
			"epub_date":        s.EPubDate,
			"doi":              s.doi(),
			"pmid":             pmid,
		},
	}, nil
}

func (p *PubMedParser) organismIn(title string) string {
	lower := strings.ToLower(title)
	for _, o := range p.organisms {
		if strings.Contains(lower, strings.ToLower(o)) {
			return o
		}
	}
	return ""
}
