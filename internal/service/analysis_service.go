package service

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
)

// progressionLimit caps the score history shown on the analysis page.
const progressionLimit = 30

// AnalysisService builds the performance overview from the stats aggregate.
type AnalysisService struct {
	statsRepo   *repository.StatsRepository
	attemptRepo *repository.AttemptRepository
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(statsRepo *repository.StatsRepository, attemptRepo *repository.AttemptRepository) *AnalysisService {
	return &AnalysisService{statsRepo: statsRepo, attemptRepo: attemptRepo}
}

// ForUser returns the user's analysis. Users without attempts get zeros.
func (s *AnalysisService) ForUser(ctx context.Context, userID int64) (*model.Analysis, error) {
	stats, err := s.statsRepo.Get(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	progression, err := s.attemptRepo.Progression(ctx, userID, progressionLimit)
	if err != nil {
		return nil, err
	}
	a := BuildAnalysis(stats, progression)
	return &a, nil
}

// BuildAnalysis derives averages and the score distribution from an
// aggregate row. A nil row means no completed attempts.
func BuildAnalysis(stats *model.UserStats, progression []model.ScorePoint) model.Analysis {
	if progression == nil {
		progression = []model.ScorePoint{}
	}
	a := model.Analysis{
		Distribution: map[string]int{"0-25": 0, "25-50": 0, "50-75": 0, "75-100": 0},
		Progression:  progression,
	}
	if stats == nil || stats.TotalAttempts == 0 {
		return a
	}

	a.TotalAttempts = stats.TotalAttempts
	a.AverageScore = int(math.Round(float64(stats.TotalScore) / float64(stats.TotalAttempts)))
	a.BestScore = stats.BestScore
	if stats.TotalQuestions > 0 {
		a.AverageTimePerQuestion = int(math.Round(float64(stats.TotalTimeSpent) / float64(stats.TotalQuestions)))
	}
	a.Distribution["0-25"] = stats.Bucket0To25
	a.Distribution["25-50"] = stats.Bucket25To50
	a.Distribution["50-75"] = stats.Bucket50To75
	a.Distribution["75-100"] = stats.Bucket75To100
	return a
}
