// Package interview composes the catalog, engine and scorer into a
// turn-by-turn interviewer: it poses each item's question, routes
// respondent utterances through the engine, and advances on score
// events.
package interview

import (
	"context"

	"github.com/abhisek/mindscale/internal/assessment"
	"github.com/abhisek/mindscale/internal/catalog"
)

// Kind classifies one driver output.
type Kind int

const (
	// KindQuestion opens a new item.
	KindQuestion Kind = iota
	// KindMessage continues the current item's dialogue.
	KindMessage
	// KindComplete ends the interview.
	KindComplete
)

// Output is what the driver hands the session adapter after each step.
type Output struct {
	Kind    Kind
	Text    string
	Visible bool

	// Item position, for progress display. Valid for KindQuestion.
	ItemID     string
	ItemIndex  int
	TotalItems int
}

// Driver runs one interview over one engine. Not safe for concurrent
// use; the session adapter serializes turns.
type Driver struct {
	engine          *assessment.Engine
	currentQuestion string
}

// NewDriver creates a driver over the given engine.
func NewDriver(engine *assessment.Engine) *Driver {
	return &Driver{engine: engine}
}

// Engine exposes the underlying engine for persistence calls at the
// session boundary.
func (d *Driver) Engine() *assessment.Engine { return d.engine }

// Start poses the current item's question. On a fresh engine that is
// the first item; on a restored one it re-poses the item the
// respondent left off at.
func (d *Driver) Start() Output {
	item, ok := d.engine.CurrentItem()
	if !ok {
		return Output{Kind: KindComplete}
	}
	return d.pose(item)
}

// Resume restores a prior session by respondent id and re-poses its
// current question. Returns false when no snapshot exists.
func (d *Driver) Resume(ctx context.Context, respondentID string) (Output, bool) {
	if !d.engine.LoadProgress(ctx, respondentID) {
		return Output{}, false
	}
	return d.Start(), true
}

// HandleUtterance processes one respondent utterance. A score event
// advances to the next item's question (or completion); a message
// event stays on the current item. Model call errors propagate so the
// adapter can surface a retryable error with state unchanged.
func (d *Driver) HandleUtterance(ctx context.Context, utterance string) (Output, error) {
	result, err := d.engine.ProcessResponse(ctx, utterance, d.currentQuestion)
	if err != nil {
		return Output{}, err
	}

	switch r := result.(type) {
	case assessment.ScoreResult:
		item, ok := d.engine.Advance(ctx)
		if !ok {
			return Output{Kind: KindComplete}, nil
		}
		return d.pose(item), nil
	case assessment.MessageResult:
		return Output{Kind: KindMessage, Text: r.Text, Visible: r.Visible}, nil
	default:
		return Output{Kind: KindComplete}, nil
	}
}

func (d *Driver) pose(item catalog.Item) Output {
	d.currentQuestion = catalog.ExtractQuestion(item.Template)
	return Output{
		Kind:       KindQuestion,
		Text:       d.currentQuestion,
		Visible:    true,
		ItemID:     item.ID,
		ItemIndex:  d.engine.Cursor(),
		TotalItems: len(d.engine.Items()),
	}
}
