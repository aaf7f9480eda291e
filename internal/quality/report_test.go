package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prisma-miner/internal/domain"
)

func scoreOf(total float64, completeness, tissue float64) domain.QualityScore {
	return domain.QualityScore{
		TotalScore: total,
		Grade:      GradeFor(total),
		Scores:     domain.ComponentScores{Completeness: completeness, TissueQuality: tissue},
	}
}

func TestBuildReport(t *testing.T) {
	rep := BuildReport([]domain.QualityScore{
		scoreOf(90, 100, 100),
		scoreOf(70, 50, 0),
		scoreOf(40, 40, 0),
	})

	assert.Equal(t, 3, rep.Count)
	assert.InDelta(t, 66.666, rep.Average, 0.01)
	assert.Equal(t, 70.0, rep.Median)
	assert.Equal(t, LevelModerate, rep.Level)
	wantCounts := []int{1, 0, 1, 0, 1}
	for i, g := range rep.Grades {
		assert.Equal(t, domain.Grades[i], g.Grade)
		assert.Equal(t, wantCounts[i], g.Count)
		assert.InDelta(t, float64(wantCounts[i])*100/3, g.Percent, 1e-9)
	}
	assert.Equal(t, "completeness", rep.Components[0].Name)
	assert.InDelta(t, 63.333, rep.Components[0].Average, 0.01)
	assert.Equal(t, 2, rep.LowCompleteness)
	assert.Equal(t, 2, rep.MissingTissue)
	assert.Len(t, rep.Issues, 2)
}

func TestBuildReportLevels(t *testing.T) {
	assert.Equal(t, LevelGood, BuildReport([]domain.QualityScore{scoreOf(80, 100, 100)}).Level)
	assert.Equal(t, LevelLow, BuildReport([]domain.QualityScore{scoreOf(59, 100, 100)}).Level)
	assert.Equal(t, 60.0, BuildReport([]domain.QualityScore{scoreOf(50, 100, 100), scoreOf(70, 100, 100)}).Median)

	empty := BuildReport(nil)
	assert.Equal(t, 0, empty.Count)
	assert.Len(t, empty.Grades, 5)
	assert.Empty(t, empty.Components)
}

func TestAssessorReportSkipsUnscored(t *testing.T) {
	a := newTestAssessor(t)
	assessed := a.AssessCollection([]domain.Record{{ID: "A"}})
	assessed = append(assessed, AssessedRecord{Record: domain.Record{ID: "B"}})

	assert.Equal(t, 1, a.Report(assessed).Count)
}

func TestReportText(t *testing.T) {
	rep := BuildReport([]domain.QualityScore{scoreOf(40, 40, 0)})
	text := rep.Text(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	assert.Contains(t, text, "Generated: 2024-05-01 12:00:00")
	assert.Contains(t, text, "Total records: 1")
	assert.Contains(t, text, "Average quality score: 40.0/100")
	assert.Contains(t, text, "F: 1 (100.0%)")
	assert.Contains(t, text, "Overall quality is LOW")
	assert.Contains(t, text, "lack tissue information")
}
