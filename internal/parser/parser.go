// Package parser turns E-utilities esummary JSON documents into normalized
// domain records, one parser per source database.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/vocabulary"
)

// Parser converts one esummary document into records. Records that cannot
// be parsed are logged and skipped; only an unreadable document is an error.
type Parser interface {
	Source() string
	Parse(doc []byte, condition string) ([]domain.Record, error)
}

// NCBI database names accepted by ForDatabase.
const (
	DBBioProject = "bioproject"
	DBSRA        = "sra"
	DBGEO        = "gds"
	DBPubMed     = "pubmed"
)

// ForDatabase returns the parser for an NCBI database name.
func ForDatabase(db string, vocab *vocabulary.Registry, logger *logrus.Logger) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(db)) {
	case DBBioProject:
		return NewBioProjectParser(logger), nil
	case DBSRA:
		return NewSRAParser(logger), nil
	case DBGEO, "geo":
		return NewGEOParser(logger), nil
	case DBPubMed:
		return NewPubMedParser(vocab, logger), nil
	}
	return nil, domain.NewValidationError("database", "no parser for database", db)
}

type itemFunc func(uid string, raw json.RawMessage) (domain.Record, error)

type base struct {
	source string
	logger *logrus.Logger
}

func newBase(source string, logger *logrus.Logger) base {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return base{source: source, logger: logger}
}

func (b base) Source() string { return b.source }

type summaryEnvelope struct {
	Result map[string]json.RawMessage `json:"result"`
}

type itemError struct {
	Error string `json:"error"`
}

// parseAll walks result.uids in order and applies one to every item.
func (b base) parseAll(doc []byte, condition string, one itemFunc) ([]domain.Record, error) {
	var env summaryEnvelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, fmt.Errorf("decode %s esummary: %w", b.source, err)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("decode %s esummary: missing result", b.source)
	}

	var uids []string
	if raw, ok := env.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, fmt.Errorf("decode %s esummary uids: %w", b.source, err)
		}
	}

	records := make([]domain.Record, 0, len(uids))
	for _, uid := range uids {
		log := b.logger.WithFields(logrus.Fields{"source": b.source, "uid": uid})

		raw, ok := env.Result[uid]
		if !ok {
			log.Warn("esummary item missing from result")
			continue
		}
		var ie itemError
		if json.Unmarshal(raw, &ie) == nil && ie.Error != "" {
			log.WithField("reason", ie.Error).Warn("esummary item reported an error")
			continue
		}

		rec, err := one(uid, raw)
		if err != nil {
			log.WithError(err).Warn("failed to parse record")
			continue
		}
		rec.SourceDatabase = b.source
		rec.ConditionLabel = condition
		records = append(records, rec)
	}
	return records, nil
}

// clean collapses runs of whitespace into single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if domain.Present(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func requireID(uid string, candidates ...string) (string, error) {
	id := firstNonBlank(append(candidates, uid)...)
	if id == "" {
		return "", fmt.Errorf("record has neither an accession nor a uid")
	}
	return id, nil
}
