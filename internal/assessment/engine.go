// Package assessment implements the interview state machine: it owns
// the item cursor, per-item dialogue histories, accumulated scores,
// the conditional skip rule and durable resumable progress.
package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/mindscale/internal/catalog"
	"github.com/abhisek/mindscale/internal/scorer"
	"github.com/abhisek/mindscale/internal/store"
)

// Evaluator classifies one respondent utterance in its item context.
// Satisfied by *scorer.Adapter.
type Evaluator interface {
	Evaluate(ctx context.Context, template, question string, history []store.Turn, utterance string) (*scorer.Evaluation, error)
}

// Result is the engine's answer to one processed utterance.
type Result interface{ isResult() }

// ScoreResult reports that the current item was scored.
type ScoreResult struct {
	Scores map[string]int
}

// MessageResult carries a continuation message for the respondent.
// Visible is false for internal turns the adapter must not surface.
type MessageResult struct {
	Text    string
	Visible bool
}

// CompleteResult reports that the interview is finished.
type CompleteResult struct{}

func (ScoreResult) isResult()    {}
func (MessageResult) isResult()  {}
func (CompleteResult) isResult() {}

// Options configures an Engine.
type Options struct {
	// SkipItemID names the conditional skip item. Default "hamd17".
	SkipItemID string

	// SkipThreshold is the low-burden cutoff: when the sum of all other
	// recorded scores is at or below it, the skip item auto-scores zero.
	// Nil means the default of 8. Zero is a valid cutoff: the item is
	// then skipped only when every other score is zero.
	SkipThreshold *int

	Logger *slog.Logger

	// Clock is the timestamp source. Default time.Now.
	Clock func() time.Time
}

// Engine walks one respondent through the ordered item list. One
// Engine per respondent; not safe for concurrent use — the session
// adapter serializes turns per connection.
type Engine struct {
	items         []catalog.Item
	skipItemID    string
	skipThreshold int

	cursor         int
	scores         map[string]int
	scoreHistory   map[string][]store.ScoreEvent
	conversations  map[string][]store.Turn
	respondentInfo map[string]any
	completed      bool
	finalSaved     bool

	evaluator Evaluator
	progress  store.ProgressRepo
	results   store.ResultRepo
	logger    *slog.Logger
	clock     func() time.Time
}

// New creates an Engine over the catalog's items. The conditional skip
// item, if present, is moved to the end of the administration order so
// its eligibility can be judged against all other items' scores.
func New(cat *catalog.Catalog, eval Evaluator, progress store.ProgressRepo, results store.ResultRepo, opts Options) *Engine {
	if opts.SkipItemID == "" {
		opts.SkipItemID = "hamd17"
	}
	threshold := 8
	if opts.SkipThreshold != nil {
		threshold = *opts.SkipThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	var items []catalog.Item
	var skipItem *catalog.Item
	for _, it := range cat.Items() {
		if it.ID == opts.SkipItemID {
			skip := it
			skipItem = &skip
			continue
		}
		items = append(items, it)
	}
	if skipItem != nil {
		items = append(items, *skipItem)
	}

	return &Engine{
		items:          items,
		skipItemID:     opts.SkipItemID,
		skipThreshold:  threshold,
		scores:         make(map[string]int),
		scoreHistory:   make(map[string][]store.ScoreEvent),
		conversations:  make(map[string][]store.Turn),
		respondentInfo: make(map[string]any),
		evaluator:      eval,
		progress:       progress,
		results:        results,
		logger:         opts.Logger,
		clock:          opts.Clock,
	}
}

// SetRespondentInfo stores identity info. Required before any
// persistence call succeeds; content is validated only at save time.
func (e *Engine) SetRespondentInfo(info map[string]any) {
	if info == nil {
		info = make(map[string]any)
	}
	e.respondentInfo = info
}

// RespondentInfo returns the stored identity info.
func (e *Engine) RespondentInfo() map[string]any { return e.respondentInfo }

// Items returns the items in administration order.
func (e *Engine) Items() []catalog.Item {
	out := make([]catalog.Item, len(e.items))
	copy(out, e.items)
	return out
}

// CurrentItem returns the item under the cursor, or false in the
// terminal state.
func (e *Engine) CurrentItem() (catalog.Item, bool) {
	if e.completed || e.cursor >= len(e.items) {
		return catalog.Item{}, false
	}
	return e.items[e.cursor], true
}

// Cursor returns the current item index.
func (e *Engine) Cursor() int { return e.cursor }

// Completed reports whether the interview reached the terminal state.
func (e *Engine) Completed() bool { return e.completed }

// Scores returns a copy of the recorded scores.
func (e *Engine) Scores() map[string]int {
	out := make(map[string]int, len(e.scores))
	for k, v := range e.scores {
		out[k] = v
	}
	return out
}

// History returns the conversation history recorded for an item.
func (e *Engine) History(itemID string) []store.Turn {
	turns := e.conversations[itemID]
	out := make([]store.Turn, len(turns))
	copy(out, turns)
	return out
}

// ProcessResponse evaluates one respondent utterance against the
// current item. question is the question posed for this item, replayed
// to the model as a prior assistant turn; it may be empty.
//
// A model call failure propagates with state unchanged, so the caller
// can surface a retryable error and the respondent can resend. On
// success the respondent turn and every model turn (raw text, whatever
// the classification) are appended to the item's history, and a
// progress snapshot is taken best-effort.
func (e *Engine) ProcessResponse(ctx context.Context, utterance, question string) (Result, error) {
	item, ok := e.CurrentItem()
	if !ok {
		return CompleteResult{}, nil
	}

	ev, err := e.evaluator.Evaluate(ctx, item.Template, question, e.conversations[item.ID], utterance)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, err)
	}

	e.conversations[item.ID] = append(e.conversations[item.ID], store.Turn{
		Role:    store.RolePatient,
		Content: utterance,
		Visible: true,
	})
	for _, turn := range ev.Turns {
		e.conversations[item.ID] = append(e.conversations[item.ID], store.Turn{
			Role:    store.RoleAssistant,
			Content: turn.Raw,
			Scored:  turn.Scored,
			Visible: turn.Visible,
		})
	}

	switch outcome := ev.Outcome.(type) {
	case scorer.ScoreOutcome:
		e.recordScores(outcome.Scores)
		e.SaveProgress(ctx)
		return ScoreResult{Scores: outcome.Scores}, nil
	case scorer.MessageOutcome:
		e.SaveProgress(ctx)
		return MessageResult{Text: outcome.Text, Visible: outcome.Visible}, nil
	default:
		return nil, fmt.Errorf("item %s: unknown evaluation outcome %T", item.ID, ev.Outcome)
	}
}

func (e *Engine) recordScores(scores map[string]int) {
	now := e.clock()
	for id, value := range scores {
		e.scores[id] = value
		e.scoreHistory[id] = append(e.scoreHistory[id], store.ScoreEvent{Score: value, Timestamp: now})
	}
}

// Advance moves the cursor to the next item. When the next position is
// the conditional skip item and the sum of all other recorded scores
// is at or below the threshold, the skip item auto-scores zero (with a
// history entry and a snapshot) and the cursor moves past it. On
// exhaustion the engine enters the terminal state and saves the final
// result exactly once.
func (e *Engine) Advance(ctx context.Context) (catalog.Item, bool) {
	if e.completed {
		return catalog.Item{}, false
	}

	next := e.cursor + 1
	if next < len(e.items) && e.items[next].ID == e.skipItemID {
		if e.sumOtherScores() <= e.skipThreshold {
			e.recordScores(map[string]int{e.skipItemID: 0})
			e.SaveProgress(ctx)
			next++
		}
	}

	if next >= len(e.items) {
		e.complete(ctx)
		return catalog.Item{}, false
	}

	e.cursor = next
	e.SaveProgress(ctx)
	return e.items[next], true
}

// sumOtherScores sums every recorded score except the skip item's own
// prior value.
func (e *Engine) sumOtherScores() int {
	sum := 0
	for id, value := range e.scores {
		if id == e.skipItemID {
			continue
		}
		sum += value
	}
	return sum
}

func (e *Engine) complete(ctx context.Context) {
	e.completed = true
	e.cursor = len(e.items)
	if e.finalSaved {
		return
	}
	e.finalSaved = true
	if !e.SaveFinalResult(ctx) {
		e.logger.Warn("final result not saved on completion")
	}
}

// SaveProgress durably writes the full session state keyed by
// respondent id, replacing any prior snapshot. Returns false without
// raising when the respondent id is missing or the write fails.
func (e *Engine) SaveProgress(ctx context.Context) bool {
	id, ok := e.respondentID()
	if !ok {
		e.logger.Warn("progress not saved: respondent id missing")
		return false
	}

	snapshot := &store.Progress{
		RespondentInfo: e.respondentInfo,
		Cursor:         e.cursor,
		Scores:         e.scores,
		ScoreHistory:   e.scoreHistory,
		Conversations:  e.conversations,
		LastUpdate:     e.clock(),
	}
	if err := e.progress.SaveProgress(ctx, id, snapshot); err != nil {
		e.logger.Error("save progress failed", "respondent", id, "error", err)
		return false
	}
	return true
}

// LoadProgress replaces the in-memory session state with the snapshot
// for the given respondent. Returns false without side effects when no
// snapshot exists or the read fails.
func (e *Engine) LoadProgress(ctx context.Context, respondentID string) bool {
	snapshot, err := e.progress.LoadProgress(ctx, respondentID)
	if err != nil {
		e.logger.Error("load progress failed", "respondent", respondentID, "error", err)
		return false
	}
	if snapshot == nil {
		return false
	}

	e.respondentInfo = snapshot.RespondentInfo
	if e.respondentInfo == nil {
		e.respondentInfo = make(map[string]any)
	}
	e.cursor = snapshot.Cursor
	e.scores = snapshot.Scores
	if e.scores == nil {
		e.scores = make(map[string]int)
	}
	e.scoreHistory = snapshot.ScoreHistory
	if e.scoreHistory == nil {
		e.scoreHistory = make(map[string][]store.ScoreEvent)
	}
	e.conversations = snapshot.Conversations
	if e.conversations == nil {
		e.conversations = make(map[string][]store.Turn)
	}
	e.completed = e.cursor >= len(e.items)
	return true
}

// SaveFinalResult writes the immutable timestamped record of this run.
// Returns false when respondent info or scores are absent, or the
// write fails.
func (e *Engine) SaveFinalResult(ctx context.Context) bool {
	if len(e.respondentInfo) == 0 {
		e.logger.Warn("final result not saved: respondent info missing")
		return false
	}
	if len(e.scores) == 0 {
		e.logger.Warn("final result not saved: no scores recorded")
		return false
	}

	result := &store.Result{
		Timestamp:      e.clock(),
		RespondentInfo: e.respondentInfo,
		Scores:         e.scores,
		Conversations:  e.conversations,
	}
	if err := e.results.AppendResult(ctx, result); err != nil {
		e.logger.Error("save final result failed", "error", err)
		return false
	}
	return true
}

func (e *Engine) respondentID() (string, bool) {
	v, ok := e.respondentInfo["id"]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
