package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// FileStore keeps one <jobID>.json file per job under a directory. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated record.
type FileStore struct {
	dir string
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the full job record, replacing any previous version.
func (s *FileStore) Save(_ context.Context, job *domain.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, job.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for job %s: %w", job.ID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write job %s: %w", job.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file for job %s: %w", job.ID, err)
	}

	if err := os.Rename(tmp.Name(), s.path(job.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}

	return nil
}

// Get reads one job record by id.
func (s *FileStore) Get(_ context.Context, id string) (*domain.Job, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}

	return &job, nil
}

// LoadAll scans the directory and returns every stored job. Records that no
// longer parse are skipped rather than aborting recovery.
func (s *FileStore) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan storage dir: %w", err)
	}

	var jobs []*domain.Job
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		job, err := s.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Delete removes a job record. Deleting a missing record is not an error.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
