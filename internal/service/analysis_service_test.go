package service

import (
	"testing"

	"github.com/stemsi/exprep-backend/internal/model"
)

func TestBuildAnalysis(t *testing.T) {
	t.Run("no attempts", func(t *testing.T) {
		a := BuildAnalysis(nil, nil)
		if a.TotalAttempts != 0 || a.AverageScore != 0 || a.Progression == nil {
			t.Fatalf("analysis = %+v", a)
		}
		if len(a.Distribution) != 4 {
			t.Fatalf("distribution = %v, want four buckets", a.Distribution)
		}
	})

	t.Run("aggregates", func(t *testing.T) {
		stats := &model.UserStats{
			TotalAttempts:  3,
			TotalScore:     200,
			BestScore:      90,
			TotalQuestions: 120,
			TotalTimeSpent: 7200,
			Bucket0To25:    1,
			Bucket75To100:  2,
		}
		a := BuildAnalysis(stats, []model.ScorePoint{{AttemptID: 1, Score: 10}})
		if a.AverageScore != 67 {
			t.Errorf("average = %d, want 67", a.AverageScore)
		}
		if a.BestScore != 90 || a.TotalAttempts != 3 {
			t.Errorf("best/total = %d/%d", a.BestScore, a.TotalAttempts)
		}
		if a.AverageTimePerQuestion != 60 {
			t.Errorf("time per question = %d, want 60", a.AverageTimePerQuestion)
		}
		if a.Distribution["0-25"] != 1 || a.Distribution["75-100"] != 2 || a.Distribution["25-50"] != 0 {
			t.Errorf("distribution = %v", a.Distribution)
		}
		if len(a.Progression) != 1 {
			t.Errorf("progression = %v", a.Progression)
		}
	})
}
