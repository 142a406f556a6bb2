package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client: client,
		model:  "qwen-plus",
	}
}

func TestOpenAIProvider_HappyPath(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "qwen-plus",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": "您能具体说说最近的睡眠情况吗？",
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     40,
				"completion_tokens": 25,
				"total_tokens":      65,
			},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:    "你是一名精神科评估员。",
		Messages:  []Message{{Role: RoleUser, Content: "最近睡不好。"}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Content) != "您能具体说说最近的睡眠情况吗？" {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.Usage.TotalTokens != 65 {
		t.Fatalf("usage = %+v, want 65 total tokens", resp.Usage)
	}
	if resp.StopReason != "end" {
		t.Fatalf("stop reason = %q, want end", resp.StopReason)
	}
}

func TestOpenAIProvider_RateLimitMapped(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}
}

func TestBuildOpenAIMessages_RoleMapping(t *testing.T) {
	req := Request{
		System: "instruction template",
		Messages: []Message{
			{Role: RoleAssistant, Content: "您最近心情怎么样？"},
			{Role: RoleUser, Content: "不太好。"},
			{Role: RoleAssistant, Content: "这一项我评3分。"},
			{Role: RoleSystem, Content: "请不要讨论具体分数。"},
		},
	}

	messages := buildOpenAIMessages(req)
	if len(messages) != 5 {
		t.Fatalf("messages = %d, want system prompt + 4 turns", len(messages))
	}

	wantRoles := []string{
		openai.ChatMessageRoleSystem,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleUser,
		openai.ChatMessageRoleAssistant,
		openai.ChatMessageRoleSystem, // mid-conversation corrective instruction
	}
	for i, want := range wantRoles {
		if messages[i].Role != want {
			t.Errorf("messages[%d].Role = %q, want %q", i, messages[i].Role, want)
		}
	}
	if messages[0].Content != "instruction template" {
		t.Errorf("system content = %q", messages[0].Content)
	}
}

func TestResolveModel(t *testing.T) {
	if got := resolveModel("qwen", openaiModels); got != "qwen-plus" {
		t.Errorf("resolveModel(qwen) = %q, want qwen-plus", got)
	}
	// Unknown names pass through as direct model IDs.
	if got := resolveModel("qwen-turbo", openaiModels); got != "qwen-turbo" {
		t.Errorf("resolveModel(qwen-turbo) = %q, want pass-through", got)
	}
}
