package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/abhisek/mindscale/internal/catalog"
	"github.com/abhisek/mindscale/internal/config"
	"github.com/abhisek/mindscale/internal/llm"
	"github.com/abhisek/mindscale/internal/store"
)

const testSource = `#label#
hamd1
{"question": "您最近心情怎么样？"}
#label#
hamd2
{"question": "您会责怪自己吗？"}
`

func newTestServer(t *testing.T, mock *llm.MockProvider) *httptest.Server {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	cfg := &config.Config{
		Port:          "0",
		PromptFile:    "test",
		DataDir:       ".",
		SkipItemID:    "hamd17",
		SkipThreshold: 8,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := New(cfg, catalog.Parse(testSource), mock, fs, fs, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "test done") })
	return ws
}

func readEvent(t *testing.T, ctx context.Context, ws *websocket.Conn) map[string]any {
	t.Helper()
	var event map[string]any
	if err := wsjson.Read(ctx, ws, &event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, llm.NewMockProvider())

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionFullInterview(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage("是从什么时候开始的？")},
		llm.MockResponse{Content: json.RawMessage(`{"hamd1": 2}`)},
		llm.MockResponse{Content: json.RawMessage(`{"hamd2": 1}`)},
	)
	ts := newTestServer(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ws := dial(t, ctx, ts)

	// Submitting respondent info opens the first item.
	err := wsjson.Write(ctx, ws, map[string]any{
		"type": "respondent_info",
		"info": map[string]any{"id": "AI001", "name": "测试患者"},
	})
	if err != nil {
		t.Fatalf("write info: %v", err)
	}

	status := readEvent(t, ctx, ws)
	if status["type"] != "status" || status["current_index"].(float64) != 0 {
		t.Fatalf("event = %v, want status for item 0", status)
	}
	question := readEvent(t, ctx, ws)
	if question["type"] != "message" || question["content"] != "您最近心情怎么样？" {
		t.Fatalf("event = %v, want the first question", question)
	}

	// A probing reply stays on the item.
	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "不太好"})
	probe := readEvent(t, ctx, ws)
	if probe["type"] != "message" || probe["content"] != "是从什么时候开始的？" {
		t.Fatalf("event = %v, want continuation message", probe)
	}

	// A score advances to the next item: status then question.
	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "两个月了，每天都难受"})
	status = readEvent(t, ctx, ws)
	if status["type"] != "status" || status["current_index"].(float64) != 1 {
		t.Fatalf("event = %v, want status for item 1", status)
	}
	question = readEvent(t, ctx, ws)
	if question["content"] != "您会责怪自己吗？" {
		t.Fatalf("event = %v, want the second question", question)
	}

	// The final score completes the interview.
	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "有时候会"})
	complete := readEvent(t, ctx, ws)
	if complete["type"] != "complete" {
		t.Fatalf("event = %v, want completion", complete)
	}
	scores := complete["scores"].(map[string]any)
	if scores["hamd1"].(float64) != 2 || scores["hamd2"].(float64) != 1 {
		t.Errorf("scores = %v", scores)
	}
}

func TestSessionRejectsMissingID(t *testing.T) {
	ts := newTestServer(t, llm.NewMockProvider())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws := dial(t, ctx, ts)

	wsjson.Write(ctx, ws, map[string]any{
		"type": "respondent_info",
		"info": map[string]any{"name": "无ID"},
	})
	event := readEvent(t, ctx, ws)
	if event["type"] != "error" {
		t.Fatalf("event = %v, want error for missing id", event)
	}
}

func TestSessionUtteranceBeforeInfo(t *testing.T) {
	ts := newTestServer(t, llm.NewMockProvider())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws := dial(t, ctx, ts)

	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "你好"})
	event := readEvent(t, ctx, ws)
	if event["type"] != "error" {
		t.Fatalf("event = %v, want error before info is set", event)
	}
}

func TestSessionModelErrorIsRetryable(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{}},
		llm.MockResponse{Content: json.RawMessage(`{"hamd1": 1}`)},
	)
	ts := newTestServer(t, mock)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ws := dial(t, ctx, ts)

	wsjson.Write(ctx, ws, map[string]any{
		"type": "respondent_info",
		"info": map[string]any{"id": "AI003"},
	})
	readEvent(t, ctx, ws) // status
	readEvent(t, ctx, ws) // question

	// First attempt fails; the session stays alive and the resend
	// succeeds against the same item.
	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "很差"})
	event := readEvent(t, ctx, ws)
	if event["type"] != "error" {
		t.Fatalf("event = %v, want retryable error", event)
	}

	wsjson.Write(ctx, ws, map[string]any{"type": "utterance", "content": "很差"})
	event = readEvent(t, ctx, ws)
	if event["type"] != "status" || event["current_index"].(float64) != 1 {
		t.Fatalf("event = %v, want advance after successful resend", event)
	}
}
