package store

import (
	"context"
	"time"
)

// Turn is one utterance in an item's conversation history.
// This is the canonical turn shape: role-tagged, with classification and
// visibility flags, so suppressed corrective-retry turns survive for audit.
type Turn struct {
	Role    string `json:"role"` // "patient", "assistant" or "system"
	Content string `json:"content"`
	Scored  bool   `json:"scored"`  // turn carried a structured score
	Visible bool   `json:"visible"` // turn was surfaced to the respondent
}

// Speaker roles recorded in conversation histories.
const (
	RolePatient   = "patient"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ScoreEvent is one entry in an item's scoring audit trail.
type ScoreEvent struct {
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is the full reconstructable session state for one respondent.
// One record per respondent id, overwritten on every save.
type Progress struct {
	RespondentInfo map[string]any          `json:"respondent_info"`
	Cursor         int                     `json:"current_item_index"`
	Scores         map[string]int          `json:"scores"`
	ScoreHistory   map[string][]ScoreEvent `json:"score_history"`
	Conversations  map[string][]Turn       `json:"conversation_history"`
	LastUpdate     time.Time               `json:"last_update"`
}

// Result is the immutable record of one completed interview run.
type Result struct {
	Timestamp      time.Time         `json:"timestamp"`
	RespondentInfo map[string]any    `json:"respondent_info"`
	Scores         map[string]int    `json:"scores"`
	Conversations  map[string][]Turn `json:"conversation_history"`
}

// ProgressRepo manages per-respondent progress snapshots.
// Keys are disjoint per respondent, so backends need no cross-key locking.
type ProgressRepo interface {
	// SaveProgress durably writes the snapshot for the given respondent,
	// replacing any prior one. Idempotent.
	SaveProgress(ctx context.Context, respondentID string, p *Progress) error

	// LoadProgress returns the snapshot for the given respondent, or
	// (nil, nil) if none exists.
	LoadProgress(ctx context.Context, respondentID string) (*Progress, error)

	// DeleteProgress removes the snapshot for the given respondent.
	// Deleting a missing snapshot is not an error.
	DeleteProgress(ctx context.Context, respondentID string) error
}

// ResultRepo appends final result records. Records are never overwritten.
type ResultRepo interface {
	AppendResult(ctx context.Context, r *Result) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// EventRepo provides append access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
}

// NopEventRepo discards events. Used with the file backend and in tests.
type NopEventRepo struct{}

func (NopEventRepo) AppendLLMRequest(context.Context, LLMRequestEventData) error { return nil }
