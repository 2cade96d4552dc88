package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store holds job source and output binaries on the local filesystem.
// Paths handed back ("sources/<id>/name", "outputs/<id>/name") are
// relative to the base dir and safe to persist on the job record.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) fullPath(path string) (string, error) {
	// Prevent path traversal
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("invalid path: %s", path)
	}

	full := filepath.Join(s.baseDir, path)
	if !strings.HasPrefix(full, s.baseDir) {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}
	return full, nil
}

// PutSource stores an uploaded input and returns its relative path.
func (s *Store) PutSource(jobID, fileName string, content []byte) (string, error) {
	rel := filepath.Join("sources", jobID, filepath.Base(fileName))
	return rel, s.put(rel, content)
}

// PutOutput stores a produced artifact and returns its relative path.
func (s *Store) PutOutput(jobID, fileName string, content []byte) (string, error) {
	rel := filepath.Join("outputs", jobID, filepath.Base(fileName))
	return rel, s.put(rel, content)
}

func (s *Store) put(path string, content []byte) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return os.WriteFile(full, content, 0644)
}

func (s *Store) Get(path string) ([]byte, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (s *Store) Delete(path string) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	// Drop the per-job dir too; fails harmlessly while siblings remain.
	os.Remove(filepath.Dir(full))
	return nil
}

func (s *Store) Exists(path string) bool {
	full, err := s.fullPath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// DownloadName computes the save-as filename for a produced artifact:
// "<base>_<suffix>.<ext>". The extension comes from the output format
// when set, otherwise from the source name.
func DownloadName(sourceName, suffix, outputFormat string) string {
	ext := strings.TrimPrefix(filepath.Ext(sourceName), ".")
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if outputFormat != "" {
		ext = outputFormat
	}
	if ext == "" {
		return fmt.Sprintf("%s_%s", base, suffix)
	}
	return fmt.Sprintf("%s_%s.%s", base, suffix, ext)
}
