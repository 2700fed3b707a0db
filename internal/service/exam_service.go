package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
)

// Domain Errors
var (
	ErrNoQuestions         = errors.New("paper has no questions")
	ErrAccessRequired      = errors.New("exam access required")
	ErrInvalidQuestionData = errors.New("invalid question data")
)

// ExamService serves the catalog, exam access and paper question sets.
// Paper question lists are cached in Redis.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	purchaseRepo *repository.PurchaseRepository
	rdb          *redis.Client
	cacheTTL     time.Duration
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	purchaseRepo *repository.PurchaseRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		purchaseRepo: purchaseRepo,
		rdb:          rdb,
		cacheTTL:     cacheTTL,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// ─── Catalog ────────────────────────────────────────────────────────

// ListExams returns every exam, popular ones first.
func (s *ExamService) ListExams(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.examRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, nil
}

// GetExam retrieves an exam by ID.
func (s *ExamService) GetExam(ctx context.Context, id int64) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// ListPapers returns an exam's papers, newest first.
func (s *ExamService) ListPapers(ctx context.Context, examID int64) ([]model.Paper, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	papers, err := s.examRepo.ListPapers(ctx, examID)
	if err != nil {
		return nil, err
	}
	if papers == nil {
		papers = []model.Paper{}
	}
	return papers, nil
}

// GetPaper retrieves a paper by ID.
func (s *ExamService) GetPaper(ctx context.Context, id int64) (*model.Paper, error) {
	return s.examRepo.GetPaper(ctx, id)
}

// StudentQuestions returns a paper's questions with normalized options and
// without the answer key.
func (s *ExamService) StudentQuestions(ctx context.Context, paperID int64) ([]model.QuestionForStudent, error) {
	questions, err := s.PaperQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}
	out := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		out[i] = model.QuestionForStudent{
			ID:             q.ID,
			QuestionNumber: q.QuestionNumber,
			QuestionText:   q.Text,
			Options:        q.Options,
			Subject:        q.Subject,
			Topic:          q.Topic,
			Difficulty:     q.Difficulty,
		}
	}
	return out, nil
}

// ─── Question cache ─────────────────────────────────────────────────

// PaperQuestions returns a paper's normalized questions, reading through the
// Redis cache. A paper without questions yields ErrNoQuestions.
func (s *ExamService) PaperQuestions(ctx context.Context, paperID int64) ([]engine.Question, error) {
	raw, err := s.cachedQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		if _, err := s.examRepo.GetPaper(ctx, paperID); err != nil {
			return nil, err
		}
		return nil, ErrNoQuestions
	}
	return engine.NormalizeAll(raw, s.log), nil
}

func (s *ExamService) cachedQuestions(ctx context.Context, paperID int64) ([]model.Question, error) {
	key := config.CacheKey.PaperQuestionsKey(paperID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var qs []model.Question
		if jsonErr := json.Unmarshal(data, &qs); jsonErr == nil {
			return qs, nil
		}
		s.log.Warn().Int64("paper_id", paperID).Msg("Corrupt question cache entry, reloading")
	} else if !errors.Is(err, redis.Nil) {
		// Cache trouble only costs a database round trip.
		s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Question cache read failed")
	}
	return s.warmQuestions(ctx, paperID)
}

func (s *ExamService) warmQuestions(ctx context.Context, paperID int64) ([]model.Question, error) {
	qs, err := s.questionRepo.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(qs) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(qs)
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.PaperQuestionsKey(paperID), data, s.cacheTTL).Err(); err != nil {
		s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Question cache write failed")
	}

	s.log.Debug().Int64("paper_id", paperID).Int("questions", len(qs)).Msg("Cache warmed")
	return qs, nil
}

// RefreshPaperCache drops and reloads a paper's cached questions.
func (s *ExamService) RefreshPaperCache(ctx context.Context, paperID int64) error {
	if _, err := s.examRepo.GetPaper(ctx, paperID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, config.CacheKey.PaperQuestionsKey(paperID)).Err(); err != nil {
		return fmt.Errorf("drop cache: %w", err)
	}
	qs, err := s.warmQuestions(ctx, paperID)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	s.log.Info().Int64("paper_id", paperID).Msg("Cache refreshed")
	return nil
}

// ─── Access ─────────────────────────────────────────────────────────

// ListPurchases returns a user's purchases.
func (s *ExamService) ListPurchases(ctx context.Context, userID int64) ([]model.Purchase, error) {
	ps, err := s.purchaseRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []model.Purchase{}
	}
	return ps, nil
}

// Purchase grants access to an exam. The type defaults to premium.
func (s *ExamService) Purchase(ctx context.Context, userID int64, req *model.CreatePurchaseRequest) (*model.Purchase, error) {
	typ := req.Type
	if typ == "" {
		typ = model.PurchasePremium
	}
	return s.grant(ctx, userID, req.ExamID, typ)
}

// EnrollFree grants free access to an exam.
func (s *ExamService) EnrollFree(ctx context.Context, userID, examID int64) (*model.Purchase, error) {
	return s.grant(ctx, userID, examID, model.PurchaseFree)
}

func (s *ExamService) grant(ctx context.Context, userID, examID int64, typ model.PurchaseType) (*model.Purchase, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	p := &model.Purchase{UserID: userID, ExamID: examID, Type: typ}
	if err := s.purchaseRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert purchase: %w", err)
	}
	s.log.Info().Int64("user_id", userID).Int64("exam_id", examID).Str("type", string(p.Type)).Msg("Exam access granted")
	return p, nil
}

// Access reports whether the user holds a completed purchase for the exam.
func (s *ExamService) Access(ctx context.Context, userID, examID int64) (*model.AccessResponse, error) {
	p, err := s.purchaseRepo.GetCompleted(ctx, userID, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.AccessResponse{HasAccess: false}, nil
		}
		return nil, err
	}
	typ := p.Type
	return &model.AccessResponse{HasAccess: true, Type: &typ}, nil
}

// ─── Practice question sources ──────────────────────────────────────

// OpenPaper loads a paper for a practice session. Free papers are open to
// everyone; the rest need access to the exam.
func (s *ExamService) OpenPaper(ctx context.Context, userID, paperID int64) (*model.Paper, []engine.Question, error) {
	paper, err := s.examRepo.GetPaper(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	if !paper.IsFree {
		acc, err := s.Access(ctx, userID, paper.ExamID)
		if err != nil {
			return nil, nil, err
		}
		if !acc.HasAccess {
			return nil, nil, ErrAccessRequired
		}
	}
	qs, err := s.PaperQuestions(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}
	return paper, qs, nil
}

// SampleQuestions draws up to n random questions from the bank.
func (s *ExamService) SampleQuestions(ctx context.Context, subjects []string, n int) ([]engine.Question, error) {
	raw, err := s.questionRepo.Sample(ctx, subjects, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoQuestions
	}
	return engine.NormalizeAll(raw, s.log), nil
}

// QuestionsByID loads questions in the given order, for reviewing attempts.
func (s *ExamService) QuestionsByID(ctx context.Context, ids []int64) ([]engine.Question, error) {
	raw, err := s.questionRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return engine.NormalizeAll(raw, s.log), nil
}

// ─── Admin ──────────────────────────────────────────────────────────

// CreateExam inserts a new exam.
func (s *ExamService) CreateExam(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	e := &model.Exam{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Category:    req.Category,
		IsPopular:   req.IsPopular,
	}
	if err := s.examRepo.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreatePaper adds a paper to an exam.
func (s *ExamService) CreatePaper(ctx context.Context, examID int64, req *model.CreatePaperRequest) (*model.Paper, error) {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	p := &model.Paper{
		ExamID:          examID,
		Year:            req.Year,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		IsFree:          req.IsFree,
	}
	if err := s.examRepo.CreatePaper(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// QuestionError points at the rejected entry of an upload.
type QuestionError struct {
	Index int
	Err   error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %v", e.Index+1, e.Err)
}

func (e *QuestionError) Unwrap() error { return ErrInvalidQuestionData }

// ReplaceQuestions validates every uploaded question strictly, then upserts
// the paper's question set by number and drops its cache. Nothing is written when
// any question is rejected.
func (s *ExamService) ReplaceQuestions(ctx context.Context, paperID int64, req *model.ReplaceQuestionsRequest) (int, error) {
	if _, err := s.examRepo.GetPaper(ctx, paperID); err != nil {
		return 0, err
	}

	qs, err := ValidateUpload(paperID, req.Questions)
	if err != nil {
		return 0, err
	}
	if err := s.questionRepo.ReplaceForPaper(ctx, paperID, qs); err != nil {
		return 0, fmt.Errorf("replace questions: %w", err)
	}

	if err := s.rdb.Del(ctx, config.CacheKey.PaperQuestionsKey(paperID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("paper_id", paperID).Msg("Failed to drop question cache")
	}
	s.log.Info().Int64("paper_id", paperID).Int("questions", len(qs)).Msg("Paper questions replaced")
	return len(qs), nil
}

// ValidateUpload converts an upload into question rows, rejecting any entry
// whose options or answer key cannot be resolved, and duplicate numbers.
func ValidateUpload(paperID int64, in []model.AddQuestionRequest) ([]model.Question, error) {
	seen := make(map[int]bool, len(in))
	out := make([]model.Question, 0, len(in))
	for i, r := range in {
		if seen[r.QuestionNumber] {
			return nil, &QuestionError{Index: i, Err: fmt.Errorf("duplicate question number %d", r.QuestionNumber)}
		}
		seen[r.QuestionNumber] = true

		q := model.Question{
			PaperID:        paperID,
			QuestionNumber: r.QuestionNumber,
			QuestionText:   r.QuestionText,
			Options:        r.Options,
			CorrectAnswer:  r.CorrectAnswer,
			Explanation:    r.Explanation,
			Subject:        r.Subject,
			Topic:          r.Topic,
			Difficulty:     r.Difficulty,
		}
		if err := engine.Validate(q); err != nil {
			return nil, &QuestionError{Index: i, Err: err}
		}
		out = append(out, q)
	}
	return out, nil
}
