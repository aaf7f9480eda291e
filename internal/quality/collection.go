package quality

import "github.com/prisma-miner/internal/domain"

// AssessedRecord is a record with its merged quality score.
type AssessedRecord struct {
	domain.Record
	Quality *domain.QualityScore `json:"quality,omitempty"`
}

// Score returns the total score, or 0 when the record was not assessed.
func (r AssessedRecord) Score() float64 {
	if r.Quality == nil {
		return 0
	}
	return r.Quality.TotalScore
}

// AssessCollection scores every record and merges the scores back onto the
// records by ID. IDs are expected to be unique; when they are not, every
// record sharing an ID receives the score of the last one.
func (a *Assessor) AssessCollection(records []domain.Record) []AssessedRecord {
	byID := make(map[string]domain.QualityScore, len(records))
	for _, r := range records {
		byID[r.ID] = a.AssessRecord(r)
	}

	out := make([]AssessedRecord, len(records))
	for i, r := range records {
		score := byID[r.ID]
		out[i] = AssessedRecord{Record: r, Quality: &score}
	}
	return out
}
