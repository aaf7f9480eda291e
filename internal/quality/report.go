package quality

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/prisma-miner/internal/domain"
)

// Level summarizes overall collection quality.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelGood     Level = "GOOD"
)

// GradeCount is one row of the grade distribution.
type GradeCount struct {
	Grade   domain.Grade `json:"grade"`
	Count   int          `json:"count"`
	Percent float64      `json:"percent"`
}

// ComponentAverage is the mean of one sub-score across the collection.
type ComponentAverage struct {
	Name    string  `json:"name"`
	Average float64 `json:"average"`
}

// Report aggregates the scores of an assessed collection.
type Report struct {
	Count           int                `json:"count"`
	Average         float64            `json:"average"`
	Median          float64            `json:"median"`
	Grades          []GradeCount       `json:"grades"`
	Components      []ComponentAverage `json:"components"`
	Level           Level              `json:"level"`
	LowCompleteness int                `json:"low_completeness"`
	MissingTissue   int                `json:"missing_tissue"`
	Issues          []string           `json:"issues,omitempty"`
}

// Report builds collection statistics from records that carry a score.
func (a *Assessor) Report(records []AssessedRecord) Report {
	var scores []domain.QualityScore
	for _, r := range records {
		if r.Quality != nil {
			scores = append(scores, *r.Quality)
		}
	}
	return BuildReport(scores)
}

// BuildReport aggregates a set of scores.
func BuildReport(scores []domain.QualityScore) Report {
	rep := Report{Count: len(scores)}

	grades := make(map[domain.Grade]int)
	totals := make([]float64, 0, len(scores))
	var sum domain.ComponentScores
	for _, s := range scores {
		totals = append(totals, s.TotalScore)
		grades[s.Grade]++
		sum.Completeness += s.Scores.Completeness
		sum.TitleQuality += s.Scores.TitleQuality
		sum.DescriptionQuality += s.Scores.DescriptionQuality
		sum.TissueQuality += s.Scores.TissueQuality
		sum.OrganismSpecificity += s.Scores.OrganismSpecificity
		if s.Scores.Completeness < 60 {
			rep.LowCompleteness++
		}
		if s.Scores.TissueQuality < 30 {
			rep.MissingTissue++
		}
	}

	n := float64(len(scores))
	for _, g := range domain.Grades {
		row := GradeCount{Grade: g, Count: grades[g]}
		if n > 0 {
			row.Percent = float64(row.Count) / n * 100
		}
		rep.Grades = append(rep.Grades, row)
	}

	if n == 0 {
		rep.Level = LevelLow
		return rep
	}

	rep.Average = mean(totals)
	rep.Median = median(totals)
	rep.Components = []ComponentAverage{
		{Name: "completeness", Average: sum.Completeness / n},
		{Name: "title_quality", Average: sum.TitleQuality / n},
		{Name: "description_quality", Average: sum.DescriptionQuality / n},
		{Name: "tissue_quality", Average: sum.TissueQuality / n},
		{Name: "organism_specificity", Average: sum.OrganismSpecificity / n},
	}

	switch {
	case rep.Average < 60:
		rep.Level = LevelLow
	case rep.Average < 75:
		rep.Level = LevelModerate
	default:
		rep.Level = LevelGood
	}

	if float64(rep.LowCompleteness) > n*0.2 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("%d records (%.1f%%) have low completeness.",
			rep.LowCompleteness, float64(rep.LowCompleteness)/n*100))
	}
	if float64(rep.MissingTissue) > n*0.3 {
		rep.Issues = append(rep.Issues, fmt.Sprintf("%d records (%.1f%%) lack tissue information.",
			rep.MissingTissue, float64(rep.MissingTissue)/n*100))
	}
	return rep
}

// Text renders the report as a plain-text document.
func (r Report) Text(generated time.Time) string {
	var b strings.Builder

	b.WriteString("Quality Assessment Report\n")
	b.WriteString("========================\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total records: %s\n\n", humanize.Comma(int64(r.Count)))

	b.WriteString("OVERALL QUALITY METRICS\n")
	b.WriteString("-----------------------\n")
	fmt.Fprintf(&b, "Average quality score: %.1f/100\n", r.Average)
	fmt.Fprintf(&b, "Median quality score: %.1f/100\n\n", r.Median)

	b.WriteString("GRADE DISTRIBUTION\n")
	b.WriteString("------------------\n")
	for _, g := range r.Grades {
		fmt.Fprintf(&b, "%s: %s (%.1f%%)\n", g.Grade, humanize.Comma(int64(g.Count)), g.Percent)
	}

	if len(r.Components) > 0 {
		b.WriteString("\nCOMPONENT SCORES (Average)\n")
		b.WriteString("-------------------------\n")
		for _, c := range r.Components {
			fmt.Fprintf(&b, "%s: %.1f/100\n", c.Name, c.Average)
		}
	}

	b.WriteString("\nRECOMMENDATIONS\n")
	b.WriteString("---------------\n")
	switch r.Level {
	case LevelLow:
		b.WriteString("WARNING: Overall quality is LOW. Consider:\n")
		b.WriteString("  - Reviewing data sources\n")
		b.WriteString("  - Improving metadata extraction\n")
		b.WriteString("  - Adding manual curation for key records\n")
	case LevelModerate:
		b.WriteString("WARNING: Overall quality is MODERATE. Consider:\n")
		b.WriteString("  - Enhancing tissue inference algorithms\n")
		b.WriteString("  - Validating key records manually\n")
	default:
		b.WriteString("Overall quality is GOOD.\n")
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "WARNING: %s\n", issue)
	}

	return b.String()
}

func mean(v []float64) float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total / float64(len(v))
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
