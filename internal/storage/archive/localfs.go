package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ballast/internal/core"
)

// LocalFS implements Storage for the local filesystem
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a new LocalFS storage
func NewLocalFS(basePath string) (*LocalFS, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("creating base path: %w", err))
	}
	return &LocalFS{basePath: basePath}, nil
}

func (l *LocalFS) fullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

// Store writes atomically: content lands in a temp file first, the
// rename makes it visible. Readers never observe a partial object.
func (l *LocalFS) Store(ctx context.Context, key string, r io.Reader) error {
	full := l.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("creating directories: %w", err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("creating temp file: %w", err))
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("writing %s: %w", key, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("closing temp file: %w", err))
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("renaming into place: %w", err))
	}
	return nil
}

func (l *LocalFS) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.fullPath(key))
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("opening %s: %w", key, err))
	}
	return f, nil
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	searchPath := l.fullPath(prefix)

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, _ := filepath.Rel(l.basePath, path)
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})

	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveFailed, err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (l *LocalFS) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.fullPath(key)); err != nil {
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("deleting %s: %w", key, err))
	}
	return nil
}
