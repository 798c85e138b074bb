package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reefwatch/coral-etl/internal/domain"
)

// Local stores outputs under a base directory on the local filesystem.
type Local struct {
	baseDir string
}

// NewLocal creates the base directory if needed.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, &domain.IOFailure{Path: baseDir, Err: fmt.Errorf("create base directory: %w", err)}
	}
	return &Local{baseDir: baseDir}, nil
}

func (l *Local) Store(_ context.Context, path string, data []byte) error {
	full := filepath.Join(l.baseDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &domain.IOFailure{Path: full, Err: err}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return &domain.IOFailure{Path: full, Err: err}
	}
	return nil
}

func (l *Local) Read(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &domain.IOFailure{Path: full, Err: err}
	}
	return data, nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.baseDir, path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.baseDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.IOFailure{Path: l.baseDir, Err: err}
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *Local) Close() error { return nil }
