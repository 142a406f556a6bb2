package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists progress snapshots and final results as JSON files
// under a data directory:
//
//	<dir>/progress/progress_<respondent-id>.json   (overwritten)
//	<dir>/results/assessment_<timestamp>.json      (append-only)
//
// One file per respondent id keeps concurrent sessions write-disjoint.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating the progress
// and results subdirectories if needed.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"progress", "results"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) progressPath(respondentID string) string {
	return filepath.Join(s.dir, "progress", "progress_"+respondentID+".json")
}

// SaveProgress writes the snapshot via a temp file and rename so a crash
// mid-write never leaves a truncated snapshot behind.
func (s *FileStore) SaveProgress(_ context.Context, respondentID string, p *Progress) error {
	if respondentID == "" {
		return fmt.Errorf("respondent id is empty")
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	path := s.progressPath(respondentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace progress: %w", err)
	}
	return nil
}

func (s *FileStore) LoadProgress(_ context.Context, respondentID string) (*Progress, error) {
	data, err := os.ReadFile(s.progressPath(respondentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &p, nil
}

func (s *FileStore) DeleteProgress(_ context.Context, respondentID string) error {
	err := os.Remove(s.progressPath(respondentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// AppendResult writes a new timestamped result file. An existing file with
// the same timestamp (two completions within one second) gets a numeric
// suffix rather than being overwritten.
func (s *FileStore) AppendResult(_ context.Context, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	stamp := r.Timestamp.Format("20060102_150405")
	base := filepath.Join(s.dir, "results", "assessment_"+stamp)
	path := base + ".json"
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = fmt.Sprintf("%s_%d.json", base, n)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
