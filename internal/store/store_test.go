package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleProgress(now time.Time) *Progress {
	return &Progress{
		RespondentInfo: map[string]any{"id": "AI001", "name": "测试患者"},
		Cursor:         3,
		Scores:         map[string]int{"hamd1": 2, "hamd2": 0},
		ScoreHistory: map[string][]ScoreEvent{
			"hamd1": {{Score: 2, Timestamp: now}},
			"hamd2": {{Score: 0, Timestamp: now}},
		},
		Conversations: map[string][]Turn{
			"hamd1": {
				{Role: RolePatient, Content: "最近睡不好", Visible: true},
				{Role: RoleAssistant, Content: `{"hamd1": 2}`, Scored: true},
			},
		},
		LastUpdate: now,
	}
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return s
}

// Both backends must satisfy the same repo interfaces.
var (
	_ ProgressRepo = (*FileStore)(nil)
	_ ResultRepo   = (*FileStore)(nil)
	_ ProgressRepo = (*SQLiteStore)(nil)
	_ ResultRepo   = (*SQLiteStore)(nil)
	_ EventRepo    = (*SQLiteStore)(nil)
)

func testProgressRoundTrip(t *testing.T, repo ProgressRepo) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	// Absent snapshot loads as nil without error.
	p, err := repo.LoadProgress(ctx, "AI001")
	if err != nil {
		t.Fatalf("load (empty): %v", err)
	}
	if p != nil {
		t.Fatal("expected nil progress when none exists")
	}

	want := sampleProgress(now)
	if err := repo.SaveProgress(ctx, "AI001", want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.LoadProgress(ctx, "AI001")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected progress after save")
	}
	if got.Cursor != want.Cursor {
		t.Errorf("cursor = %d, want %d", got.Cursor, want.Cursor)
	}
	if len(got.Scores) != 2 || got.Scores["hamd1"] != 2 {
		t.Errorf("scores = %v, want %v", got.Scores, want.Scores)
	}
	if len(got.ScoreHistory["hamd1"]) != 1 {
		t.Errorf("score history = %v, want one hamd1 entry", got.ScoreHistory)
	}
	if len(got.Conversations["hamd1"]) != 2 {
		t.Fatalf("conversation = %v, want two hamd1 turns", got.Conversations)
	}
	turn := got.Conversations["hamd1"][1]
	if !turn.Scored || turn.Visible {
		t.Errorf("score turn flags = %+v, want scored and not visible", turn)
	}

	// Overwrite replaces the snapshot.
	want.Cursor = 5
	if err := repo.SaveProgress(ctx, "AI001", want); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = repo.LoadProgress(ctx, "AI001")
	if err != nil {
		t.Fatalf("load after overwrite: %v", err)
	}
	if got.Cursor != 5 {
		t.Errorf("cursor after overwrite = %d, want 5", got.Cursor)
	}

	// Delete, including deleting twice, succeeds.
	if err := repo.DeleteProgress(ctx, "AI001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteProgress(ctx, "AI001"); err != nil {
		t.Fatalf("delete (missing): %v", err)
	}
	got, err = repo.LoadProgress(ctx, "AI001")
	if err != nil || got != nil {
		t.Fatalf("load after delete = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestFileStoreProgressRoundTrip(t *testing.T) {
	testProgressRoundTrip(t, openTestFileStore(t))
}

func TestSQLiteProgressRoundTrip(t *testing.T) {
	testProgressRoundTrip(t, openTestSQLite(t))
}

func TestSaveProgressRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	if err := openTestFileStore(t).SaveProgress(ctx, "", sampleProgress(now)); err == nil {
		t.Error("file store: expected error for empty respondent id")
	}
	if err := openTestSQLite(t).SaveProgress(ctx, "", sampleProgress(now)); err == nil {
		t.Error("sqlite store: expected error for empty respondent id")
	}
}

func TestFileStoreResultsNeverOverwritten(t *testing.T) {
	s := openTestFileStore(t)
	ctx := context.Background()
	stamp := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	r := &Result{
		Timestamp:      stamp,
		RespondentInfo: map[string]any{"id": "AI001"},
		Scores:         map[string]int{"hamd1": 2},
	}
	// Two completions in the same second must produce two files.
	if err := s.AppendResult(ctx, r); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := s.AppendResult(ctx, r); err != nil {
		t.Fatalf("append second: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, "results"))
	if err != nil {
		t.Fatalf("read results dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("result files = %d, want 2", len(entries))
	}
}

func TestSQLiteResultsAppend(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	r := &Result{
		Timestamp:      time.Now(),
		RespondentInfo: map[string]any{"id": "AI002"},
		Scores:         map[string]int{"hamd1": 1},
	}
	if err := s.AppendResult(ctx, r); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendResult(ctx, r); err != nil {
		t.Fatalf("append again: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if count != 2 {
		t.Errorf("result rows = %d, want 2", count)
	}
}

func TestSQLiteAppendLLMRequest(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	err := s.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider:     "mock",
		Model:        "mock",
		Purpose:      "item-scoring",
		InputTokens:  12,
		OutputTokens: 5,
		LatencyMs:    40,
		Success:      true,
	})
	if err != nil {
		t.Fatalf("append llm event: %v", err)
	}

	var purpose string
	if err := s.db.QueryRow(`SELECT purpose FROM llm_events`).Scan(&purpose); err != nil {
		t.Fatalf("query llm event: %v", err)
	}
	if purpose != "item-scoring" {
		t.Errorf("purpose = %q, want item-scoring", purpose)
	}
}

func TestDistinctRespondentsAreIndependent(t *testing.T) {
	s := openTestFileStore(t)
	ctx := context.Background()
	now := time.Now()

	a := sampleProgress(now)
	b := sampleProgress(now)
	b.Cursor = 9

	if err := s.SaveProgress(ctx, "AI001", a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.SaveProgress(ctx, "AI002", b); err != nil {
		t.Fatalf("save b: %v", err)
	}

	got, err := s.LoadProgress(ctx, "AI002")
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if got.Cursor != 9 {
		t.Errorf("cursor = %d, want 9", got.Cursor)
	}
}
