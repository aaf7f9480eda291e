package parser

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
)

// tissueKeywords are tried in order; the first whole-word match wins.
var tissueKeywords = []string{
	"root", "leaf", "leaves", "shoot", "stem", "flower", "seed",
	"fruit", "berry", "petal", "sepal", "carpel", "stamen",
	"cotyledon", "hypocotyl", "radicle", "meristem", "bark",
	"xylem", "phloem", "pollen", "ovule", "embryo", "endosperm",
	"whole plant", "seedling", "callus", "culture", "cell",
}

var (
	tissuePatterns = compileWordPatterns(tissueKeywords)
	runAccession   = regexp.MustCompile(`[SED]RR\d+`)
)

const maxRuns = 5

func compileWordPatterns(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// InferTissue returns the first tissue keyword found as a whole word in
// text, case-insensitively.
func InferTissue(text string) (string, domain.TissueConfidence) {
	lower := strings.ToLower(text)
	for i, re := range tissuePatterns {
		if re.MatchString(lower) {
			return tissueKeywords[i], domain.TissueInferred
		}
	}
	return "", domain.TissueUnknown
}

// SRAParser parses SRA esummary documents, including the embedded expxml
// fragment.
type SRAParser struct {
	base
}

func NewSRAParser(logger *logrus.Logger) *SRAParser {
	return &SRAParser{base: newBase("SRA", logger)}
}

type sraSummary struct {
	ExpXML     string `json:"expxml"`
	Runs       string `json:"runs"`
	CreateDate string `json:"createdate"`
}

type sraExperiment struct {
	Summary struct {
		Title    string `xml:"Title"`
		Platform struct {
			Name  string `xml:",chardata"`
			Model string `xml:"instrument_model,attr"`
		} `xml:"Platform"`
	} `xml:"Summary"`
	Experiment struct {
		Acc  string `xml:"acc,attr"`
		Name string `xml:"name,attr"`
	} `xml:"Experiment"`
	Study struct {
		Acc string `xml:"acc,attr"`
	} `xml:"Study"`
	Organism struct {
		TaxID          string `xml:"taxid,attr"`
		ScientificName string `xml:"ScientificName,attr"`
	} `xml:"Organism"`
	Sample struct {
		Acc  string `xml:"acc,attr"`
		Name string `xml:"name,attr"`
	} `xml:"Sample"`
	Library struct {
		Strategy string `xml:"LIBRARY_STRATEGY"`
		Source   string `xml:"LIBRARY_SOURCE"`
		Layout   struct {
			Paired *struct{} `xml:"PAIRED"`
			Single *struct{} `xml:"SINGLE"`
		} `xml:"LIBRARY_LAYOUT"`
	} `xml:"Library_descriptor"`
	BioProject string `xml:"Bioproject"`
	BioSample  string `xml:"Biosample"`
}

func (e sraExperiment) layout() string {
	switch {
	case e.Library.Layout.Paired != nil:
		return "PAIRED"
	case e.Library.Layout.Single != nil:
		return "SINGLE"
	}
	return ""
}

// decodeExpXML parses the expxml fragment, which has several top-level
// elements and so is wrapped before decoding.
func decodeExpXML(fragment string) (sraExperiment, error) {
	var e sraExperiment
	if strings.TrimSpace(fragment) == "" {
		return e, nil
	}
	if err := xml.Unmarshal([]byte("<ExpXml>"+fragment+"</ExpXml>"), &e); err != nil {
		return e, fmt.Errorf("decode expxml: %w", err)
	}
	return e, nil
}

func (p *SRAParser) Parse(doc []byte, condition string) ([]domain.Record, error) {
	return p.parseAll(doc, condition, p.parseItem)
}

func (p *SRAParser) parseItem(uid string, raw json.RawMessage) (domain.Record, error) {
	var s sraSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Record{}, err
	}
	exp, err := decodeExpXML(s.ExpXML)
	if err != nil {
		return domain.Record{}, err
	}
	id, err := requireID(uid, exp.Experiment.Acc)
	if err != nil {
		return domain.Record{}, err
	}

	organism := strings.TrimSpace(exp.Organism.ScientificName)
	strategy := strings.TrimSpace(exp.Library.Strategy)
	tissue, confidence := InferTissue(strings.Join([]string{
		exp.Summary.Title, exp.Sample.Name, s.ExpXML, exp.BioSample,
	}, " "))

	runs := runAccession.FindAllString(s.Runs, maxRuns)

	return domain.Record{
		ID:               id,
		Title:            clean(exp.Summary.Title),
		Description:      clean(strategy + " from " + organism),
		Organism:         organism,
		Tissue:           tissue,
		TissueConfidence: confidence,
		Extra: map[string]string{
			"runs":             strings.Join(runs, ", "),
			"library_strategy": strategy,
			"library_source":   strings.TrimSpace(exp.Library.Source),
			"library_layout":   exp.layout(),
			"platform":         strings.TrimSpace(exp.Summary.Platform.Name),
			"sample":           exp.Sample.Name,
			"biosample":        strings.TrimSpace(exp.BioSample),
		},
	}, nil
}
