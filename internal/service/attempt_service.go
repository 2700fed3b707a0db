package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
	"github.com/stemsi/exprep-backend/internal/response"
)

// ErrNotAttemptOwner is returned when a user touches someone else's attempt.
var ErrNotAttemptOwner = errors.New("attempt belongs to another user")

// StatsJob is queued on PersistStatsQueue after an attempt changes.
type StatsJob struct {
	UserID    int64 `json:"user_id"`
	AttemptID int64 `json:"attempt_id"`
}

// AttemptService records, lists and reviews attempts.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	statsRepo   *repository.StatsRepository
	exams       *ExamService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	statsRepo *repository.StatsRepository,
	exams *ExamService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		statsRepo:   statsRepo,
		exams:       exams,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Record persists a scored practice submission and returns the attempt id.
func (s *AttemptService) Record(ctx context.Context, userID int64, sub engine.Submission) (int64, error) {
	completed := sub.CompletedAt
	a := &model.Attempt{
		UserID:         userID,
		PaperID:        sub.PaperID,
		Mode:           string(sub.Mode),
		Responses:      sub.Responses,
		QuestionIDs:    sub.QuestionIDs,
		Score:          sub.Score,
		TotalQuestions: sub.TotalQuestions,
		TimeSpent:      sub.TimeSpentSeconds,
		Status:         sub.Status,
		StartedAt:      sub.StartedAt,
		CompletedAt:    &completed,
	}
	if err := s.attemptRepo.Create(ctx, a); err != nil {
		return 0, fmt.Errorf("create attempt: %w", err)
	}
	s.enqueueStats(ctx, a)
	return a.ID, nil
}

// Create records an attempt sent directly by a client.
func (s *AttemptService) Create(ctx context.Context, userID int64, req *model.CreateAttemptRequest) (*model.Attempt, error) {
	status := req.Status
	if status == "" {
		status = engine.AttemptStatusCompleted
	}
	a := &model.Attempt{
		UserID:         userID,
		PaperID:        req.PaperID,
		Mode:           req.Mode,
		Responses:      req.Responses,
		QuestionIDs:    req.QuestionIDs,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		TimeSpent:      req.TimeSpent,
		Status:         status,
	}
	if status == engine.AttemptStatusCompleted {
		now := time.Now().UTC()
		a.CompletedAt = &now
	}
	if err := s.attemptRepo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	s.enqueueStats(ctx, a)
	return a, nil
}

// enqueueStats hands the aggregate refresh to the stats worker. A lost job
// only delays the analysis page until the user's next attempt.
func (s *AttemptService) enqueueStats(ctx context.Context, a *model.Attempt) {
	if a.Status != engine.AttemptStatusCompleted {
		return
	}
	raw, _ := json.Marshal(StatsJob{UserID: a.UserID, AttemptID: a.ID})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistStatsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Int64("attempt_id", a.ID).Msg("Failed to queue stats job")
	}
}

// Get returns an attempt owned by userID.
func (s *AttemptService) Get(ctx context.Context, userID, attemptID int64) (*model.Attempt, error) {
	a, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	return a, nil
}

// List returns a page of the user's attempts, newest first.
func (s *AttemptService) List(ctx context.Context, userID int64, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	items, total, err := s.attemptRepo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []model.AttemptSummary{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// Update patches an owned attempt and refreshes the user's aggregate.
func (s *AttemptService) Update(ctx context.Context, userID, attemptID int64, req *model.UpdateAttemptRequest) (*model.Attempt, error) {
	if _, err := s.Get(ctx, userID, attemptID); err != nil {
		return nil, err
	}
	a, err := s.attemptRepo.Update(ctx, attemptID, req)
	if err != nil {
		return nil, fmt.Errorf("update attempt: %w", err)
	}
	if err := s.statsRepo.Rebuild(ctx, userID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("Stats rebuild failed")
	}
	return a, nil
}

// Review replays an owned attempt read-only against its questions.
func (s *AttemptService) Review(ctx context.Context, userID, attemptID int64) (*engine.Review, error) {
	a, err := s.Get(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	var questions []engine.Question
	switch {
	case len(a.QuestionIDs) > 0:
		questions, err = s.exams.QuestionsByID(ctx, a.QuestionIDs)
	case a.PaperID != nil:
		questions, err = s.exams.PaperQuestions(ctx, *a.PaperID)
	default:
		return nil, ErrNoQuestions
	}
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	var paperID int64
	if a.PaperID != nil {
		paperID = *a.PaperID
	}
	c, err := engine.StartReview(paperID, questions, a.Responses, s.log)
	if err != nil {
		return nil, err
	}
	r, err := c.Review()
	if err != nil {
		return nil, err
	}
	return &r, nil
}
