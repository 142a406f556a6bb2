package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/abhisek/mindscale/internal/store"
)

type captureRepo struct {
	events []store.LLMRequestEventData
}

func (c *captureRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	c.events = append(c.events, data)
	return nil
}

func TestLoggingRecordsSuccess(t *testing.T) {
	repo := &captureRepo{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage("继续追问。"),
		Usage:   Usage{InputTokens: 10, OutputTokens: 4},
	})
	p := WithLogging(mock, repo)

	ctx := WithPurpose(context.Background(), "item-scoring")
	_, err := p.Generate(ctx, Request{
		System:   "模板",
		Messages: []Message{{Role: RoleUser, Content: "你好"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	e := repo.events[0]
	if e.Purpose != "item-scoring" {
		t.Errorf("purpose = %q", e.Purpose)
	}
	if !e.Success || e.InputTokens != 10 || e.OutputTokens != 4 {
		t.Errorf("event = %+v", e)
	}
	if e.ResponseBody != "继续追问。" {
		t.Errorf("response body = %q", e.ResponseBody)
	}
}

func TestLoggingRecordsFailure(t *testing.T) {
	repo := &captureRepo{}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, repo)

	if _, err := p.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error to pass through")
	}

	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want the failure recorded", len(repo.events))
	}
	e := repo.events[0]
	if e.Success || e.ErrorMessage == "" {
		t.Errorf("event = %+v, want failure with message", e)
	}
}
