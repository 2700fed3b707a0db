package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stemsi/exprep-backend/internal/model"
)

// Reply sources reported to clients.
const (
	SourceCanned = "canned"
	SourceLLM    = "llm"
)

// Responder answers one doubt-clearing message.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

type cannedTopic struct {
	keywords []string
	reply    string
}

// Topics are matched in order; the first hit wins.
var cannedTopics = []cannedTopic{
	{
		keywords: []string{"physics", "mechanics", "kinematics"},
		reply: "Physics problems get easier with a routine:\n\n" +
			"1. Write down what is given and what is asked.\n" +
			"2. Sketch a diagram of the situation.\n" +
			"3. Pick the equations that link the known and unknown quantities.\n" +
			"4. Check the units of the final answer.\n\n" +
			"Which physics concept would you like to go through?",
	},
	{
		keywords: []string{"chemistry", "organic", "inorganic"},
		reply: "For chemistry, focus on patterns rather than isolated facts:\n\n" +
			"1. Learn the periodic trends well.\n" +
			"2. Understand reaction mechanisms step by step.\n" +
			"3. Solve numericals of every type regularly.\n" +
			"4. Use mnemonics for reactions you keep forgetting.\n\n" +
			"Is there a chemistry topic that is giving you trouble?",
	},
	{
		keywords: []string{"mathematics", "calculus", "algebra"},
		reply: "Mathematics rewards steady practice:\n\n" +
			"1. Get the fundamentals solid first.\n" +
			"2. Practise a little every day.\n" +
			"3. Understand where formulas come from instead of memorizing them.\n" +
			"4. Work through previous years' papers to spot recurring patterns.\n\n" +
			"Which math topic should we look at?",
	},
	{
		keywords: []string{"weak", "improve", "performance"},
		reply: "Here is how to turn your attempt history into progress:\n\n" +
			"1. Spend most of your study time on your weakest subject.\n" +
			"2. Practise with the real time limit.\n" +
			"3. Revise on a spaced schedule such as 1, 3, 7 and 21 days.\n" +
			"4. Take full mock tests regularly.\n\n" +
			"Your analysis page shows where your scores are lowest.",
	},
	{
		keywords: []string{"time", "speed", "fast"},
		reply: "Time management matters as much as knowledge:\n\n" +
			"1. If a question takes more than two minutes, mark it and move on.\n" +
			"2. Budget time per section before you start.\n" +
			"3. Clear the easy questions first.\n" +
			"4. Practise under exam conditions.\n\n" +
			"Accuracy comes first; speed follows with practice.",
	},
	{
		keywords: []string{"stress", "anxiety", "nervous"},
		reply: "Feeling nervous before an exam is normal. A few things help:\n\n" +
			"1. Slow breathing, for example the 4-7-8 pattern.\n" +
			"2. Picture yourself working calmly through the paper.\n" +
			"3. Sleep well the nights before the exam.\n" +
			"4. Take a short walk to clear your head.\n\n" +
			"You have prepared for this. The exam only shows what you already know.",
	},
}

const cannedDefault = "Happy to help with that. Could you add a little more context?\n\n" +
	"- For a concept, tell me the subject.\n" +
	"- For a problem, paste the question.\n" +
	"- For study strategy, tell me what feels hard.\n\n" +
	"The more detail you share, the better the answer."

// CannedResponder replies with keyword-matched study advice.
type CannedResponder struct{}

// Respond never fails.
func (CannedResponder) Respond(_ context.Context, message string) (string, error) {
	lower := strings.ToLower(message)
	for _, t := range cannedTopics {
		for _, k := range t.keywords {
			if strings.Contains(lower, k) {
				return t.reply, nil
			}
		}
	}
	return cannedDefault, nil
}

const doubtSystemPrompt = "You are a patient tutor helping a student prepare for competitive " +
	"entrance exams (engineering and medical). Answer clearly and briefly, show the key steps " +
	"for problems, and suggest what to practise next."

// LLMResponder forwards doubts to an OpenAI-compatible chat API.
type LLMResponder struct {
	api   *openai.Client
	model string
}

// NewLLMResponder creates a responder. An empty baseURL means the OpenAI API.
func NewLLMResponder(baseURL, apiKey, modelName string) *LLMResponder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMResponder{api: openai.NewClientWithConfig(cfg), model: modelName}
}

// Respond sends one message with the tutor prompt.
func (r *LLMResponder) Respond(ctx context.Context, message string) (string, error) {
	resp, err := r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: doubtSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("LLM returned an empty reply")
	}
	return reply, nil
}

// DoubtService answers doubts with the primary responder when configured and
// falls back to canned advice when it fails.
type DoubtService struct {
	primary  Responder
	fallback Responder
	timeout  time.Duration
	log      zerolog.Logger
}

// NewDoubtService creates a DoubtService. A nil primary uses canned replies only.
func NewDoubtService(primary Responder, log zerolog.Logger) *DoubtService {
	return &DoubtService{
		primary:  primary,
		fallback: CannedResponder{},
		timeout:  20 * time.Second,
		log:      log.With().Str("component", "doubt_service").Logger(),
	}
}

// Ask answers one message.
func (s *DoubtService) Ask(ctx context.Context, req *model.DoubtRequest) (*model.DoubtResponse, error) {
	msg := strings.TrimSpace(req.Message)

	if s.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		reply, err := s.primary.Respond(cctx, msg)
		cancel()
		if err == nil {
			return &model.DoubtResponse{Reply: reply, Source: SourceLLM, CreatedAt: time.Now().UTC()}, nil
		}
		s.log.Warn().Err(err).Msg("Doubt responder failed, using canned reply")
	}

	reply, err := s.fallback.Respond(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &model.DoubtResponse{Reply: reply, Source: SourceCanned, CreatedAt: time.Now().UTC()}, nil
}
