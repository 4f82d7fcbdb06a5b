package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jobkit/synccore/internal/domain/model"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a job-match analyst. Given a candidate profile and a job posting, " +
	"reply with a single JSON object {\"score\": <0..1>, \"explanation\": \"<one sentence>\"} " +
	"and nothing else."

// LLMScorer computes match scores through an OpenAI-compatible chat
// endpoint. Pointing BaseURL at a local model server keeps scoring
// on-device; the backend analyze endpoint remains the default path.
type LLMScorer struct {
	client *openai.Client
	model  string
}

// LLMOption applies a configuration option to the LLMScorer.
type LLMOption func(*openai.ClientConfig)

// WithBaseURL targets an OpenAI-compatible server, e.g. a local runtime.
func WithBaseURL(baseURL string) LLMOption {
	return func(cfg *openai.ClientConfig) {
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
	}
}

// NewLLMScorer creates a scorer for the given model.
func NewLLMScorer(apiKey, modelName string, opts ...LLMOption) *LLMScorer {
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LLMScorer{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

// Score asks the model for a {score, explanation} judgment.
func (s *LLMScorer) Score(ctx context.Context, in Input) (model.MatchResult, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
		},
		Temperature: 0,
	})
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("%w: %w", ErrScore, err)
	}
	if len(resp.Choices) == 0 {
		return model.MatchResult{}, fmt.Errorf("%w: empty completion", ErrScore)
	}

	return parseResult(resp.Choices[0].Message.Content)
}

func buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Candidate profile:\n")
	if p := in.Profile; p != nil {
		fmt.Fprintf(&b, "role sought: %s\n", p.DesiredRole)
		fmt.Fprintf(&b, "experience: %d years\n", p.ExperienceYrs)
		if len(p.Skills) > 0 {
			fmt.Fprintf(&b, "skills: %s\n", strings.Join(p.Skills, ", "))
		}
		if p.Summary != "" {
			fmt.Fprintf(&b, "summary: %s\n", p.Summary)
		}
	}
	fmt.Fprintf(&b, "\nJob posting (id %d):\ntitle: %s\n%s\n", in.JobID, in.Title, in.Description)
	return b.String()
}

// parseResult decodes the model's JSON reply, tolerating a fenced code
// block around it.
func parseResult(content string) (model.MatchResult, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")

	var out model.MatchResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &out); err != nil {
		return model.MatchResult{}, fmt.Errorf("%w: unparseable completion: %w", ErrScore, err)
	}
	if out.Score < 0 || out.Score > 1 {
		return model.MatchResult{}, fmt.Errorf("%w: score %f out of range", ErrScore, out.Score)
	}
	return out, nil
}
