// Package scorer turns one respondent utterance plus its item context
// into either a continuation message or a structured score, hiding
// model nondeterminism behind a deterministic contract.
package scorer

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/mindscale/internal/llm"
	"github.com/abhisek/mindscale/internal/store"
)

// correctiveInstruction steers the model away from discussing numeric
// scores in prose when it should either emit structured output or keep
// probing.
const correctiveInstruction = "请不要在回复中与受访者讨论具体分数。如果可以确定评分，请直接输出结构化JSON评分；否则请继续追问。"

// Config controls adapter behavior.
type Config struct {
	// CallTimeout bounds each individual model call. A timeout surfaces
	// as a retryable error to the caller, never a fatal state change.
	CallTimeout time.Duration

	// ScoreKeyPattern is the naming convention extracted score keys
	// must match.
	ScoreKeyPattern string

	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns scoring defaults for HAMD-style items.
func DefaultConfig() Config {
	return Config{
		CallTimeout:     60 * time.Second,
		ScoreKeyPattern: `^hamd[0-9]{1,2}$`,
		MaxTokens:       1024,
		Temperature:     0.3,
	}
}

// ModelTurn records one model call's raw output with its
// classification. Raw text is always preserved for audit, even when
// display is suppressed.
type ModelTurn struct {
	Raw     string
	Scored  bool
	Visible bool
}

// Outcome is the classification of an evaluation: a structured score
// or a continuation message.
type Outcome interface{ isOutcome() }

// ScoreOutcome carries the merged scores extracted from the model
// output.
type ScoreOutcome struct {
	Scores map[string]int
}

// MessageOutcome carries a continuation message. Visible is false only
// for internal turns the caller should not surface.
type MessageOutcome struct {
	Text    string
	Visible bool
}

func (ScoreOutcome) isOutcome()   {}
func (MessageOutcome) isOutcome() {}

// Evaluation is the full result of one utterance evaluation: every
// model turn made (one, or two when the corrective retry fired) and
// the final classification.
type Evaluation struct {
	Turns   []ModelTurn
	Outcome Outcome
}

// Adapter wraps the model call for item evaluation.
type Adapter struct {
	provider llm.Provider
	cfg      Config
	schema   *llm.Schema
}

// NewAdapter creates a scorer adapter on the given provider.
func NewAdapter(provider llm.Provider, cfg Config) *Adapter {
	if cfg.ScoreKeyPattern == "" {
		cfg.ScoreKeyPattern = DefaultConfig().ScoreKeyPattern
	}
	return &Adapter{
		provider: provider,
		cfg:      cfg,
		schema:   scoreSpanSchema(cfg.ScoreKeyPattern),
	}
}

// Evaluate sends the item context and the respondent's utterance to
// the model and classifies the output. A prose reply that leaks score
// talk without structured output triggers exactly one corrective
// retry. Model call errors are not caught here: they propagate with no
// turn recorded, so the caller can treat the utterance as retryable.
func (a *Adapter) Evaluate(ctx context.Context, template, question string, history []store.Turn, utterance string) (*Evaluation, error) {
	ctx = llm.WithPurpose(ctx, "item-scoring")

	messages := buildMessages(question, history, utterance)

	raw, err := a.generate(ctx, template, messages)
	if err != nil {
		return nil, fmt.Errorf("evaluate utterance: %w", err)
	}

	if scores, ok := extractScores(raw, a.schema); ok {
		return &Evaluation{
			Turns:   []ModelTurn{{Raw: raw, Scored: true}},
			Outcome: ScoreOutcome{Scores: scores},
		}, nil
	}

	if !hasScoreLeak(raw) {
		return &Evaluation{
			Turns:   []ModelTurn{{Raw: raw, Visible: true}},
			Outcome: MessageOutcome{Text: raw, Visible: true},
		}, nil
	}

	// The leaked turn is recorded but never surfaced.
	turns := []ModelTurn{{Raw: raw}}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: raw},
		llm.Message{Role: llm.RoleSystem, Content: correctiveInstruction},
	)
	retry, err := a.generate(ctx, template, messages)
	if err != nil {
		return nil, fmt.Errorf("corrective retry: %w", err)
	}

	if scores, ok := extractScores(retry, a.schema); ok {
		return &Evaluation{
			Turns:   append(turns, ModelTurn{Raw: retry, Scored: true}),
			Outcome: ScoreOutcome{Scores: scores},
		}, nil
	}

	// Second failure degrades to a visible continuation message.
	return &Evaluation{
		Turns:   append(turns, ModelTurn{Raw: retry, Visible: true}),
		Outcome: MessageOutcome{Text: retry, Visible: true},
	}, nil
}

func (a *Adapter) generate(ctx context.Context, template string, messages []llm.Message) (string, error) {
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      template,
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Content), nil
}

// buildMessages assembles the conversation for the model: the posed
// question as a prior assistant turn, the item's history replayed in
// original speaker order, and the new utterance last.
func buildMessages(question string, history []store.Turn, utterance string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)

	if question != "" {
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: question})
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: roleFor(turn.Role), Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
}

func roleFor(storeRole string) llm.Role {
	switch storeRole {
	case store.RoleAssistant:
		return llm.RoleAssistant
	case store.RoleSystem:
		return llm.RoleSystem
	default:
		return llm.RoleUser
	}
}
