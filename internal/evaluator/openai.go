// Package evaluator grades free-text answers with an OpenAI-compatible chat
// model.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/grading"
)

const systemPrompt = `You grade written answers in a hiring assessment.
Judge relevance, correctness and completeness of the answer to the question.
Reply with a single JSON object and nothing else:
{"score": <integer 0-100>, "feedback": "<one or two sentences for the candidate>"}
Give a score below 15 when the answer is off-topic, empty of content or copied from the question.`

var errEmptyCompletion = errors.New("completion has no choices")

// OpenAIEvaluator implements grading.Evaluator.
type OpenAIEvaluator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	enabled bool
	log     zerolog.Logger
}

// NewOpenAIEvaluator builds an evaluator for cfg. Without an API key it is
// created disabled and every call degrades to "AI evaluation unavailable".
func NewOpenAIEvaluator(cfg config.EvaluatorConfig, log zerolog.Logger, opts ...option.RequestOption) *OpenAIEvaluator {
	clientOpts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIEvaluator{
		client:  openai.NewClient(clientOpts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		enabled: cfg.APIKey != "",
		log:     log.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate never returns an error; failures come back as a zero score.
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, questionText, answerText string) grading.Evaluation {
	if !e.enabled {
		return grading.Evaluation{Feedback: grading.FeedbackEvaluatorUnavailable}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	ev, err := e.evaluate(ctx, questionText, answerText)
	if err != nil {
		e.log.Warn().Err(err).Dur("took", time.Since(start)).Msg("Written answer evaluation failed")
		return grading.Evaluation{Feedback: grading.FeedbackEvaluatorFailed}
	}

	e.log.Debug().Int("score", ev.QualityScore).Dur("took", time.Since(start)).Msg("Written answer evaluated")
	return ev
}

func (e *OpenAIEvaluator) evaluate(ctx context.Context, questionText, answerText string) (grading.Evaluation, error) {
	prompt := fmt.Sprintf("Question:\n%s\n\nCandidate answer:\n%s", questionText, answerText)

	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		}),
		Model:       openai.F(e.model),
		Temperature: openai.F(0.0),
	})
	if err != nil {
		return grading.Evaluation{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return grading.Evaluation{}, errEmptyCompletion
	}

	return parseVerdict(completion.Choices[0].Message.Content)
}

type verdict struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// parseVerdict pulls the first JSON object out of the model's reply,
// tolerating code fences and surrounding prose.
func parseVerdict(content string) (grading.Evaluation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return grading.Evaluation{}, fmt.Errorf("no JSON object in reply %q", truncate(content, 120))
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return grading.Evaluation{}, fmt.Errorf("decode verdict: %w", err)
	}

	score := int(math.Round(v.Score))
	score = max(0, min(100, score))

	return grading.Evaluation{
		QualityScore: score,
		Feedback:     strings.TrimSpace(v.Feedback),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
