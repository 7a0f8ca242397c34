package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores objects as files below a root directory.
type Local struct {
	root string
}

// NewLocal creates dir if needed and returns a store rooted there.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

func (l *Local) file(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *Local) Put(_ context.Context, p string, data []byte) error {
	full := l.file(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

func (l *Local) Get(_ context.Context, p string) (io.ReadCloser, error) {
	return os.Open(l.file(p))
}

func (l *Local) Delete(_ context.Context, p string) error {
	err := os.Remove(l.file(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
