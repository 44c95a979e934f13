package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const defaultMaxSizeMB = 100

type RotationConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	// maxBytes overrides MaxSizeMB; tests use it to rotate on small writes.
	maxBytes int64
}

// RotatingWriter appends to a log file and renames it to path.1, path.2, ...
// once the next write would push it past the size limit.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func NewRotatingWriter(cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.Path == "" {
		return nil, errors.New("log file path is required")
	}
	maxSize := cfg.maxBytes
	if maxSize <= 0 {
		sizeMB := cfg.MaxSizeMB
		if sizeMB <= 0 {
			sizeMB = defaultMaxSizeMB
		}
		maxSize = int64(sizeMB) * 1024 * 1024
	}
	backups := cfg.MaxBackups
	if backups < 0 {
		backups = 0
	}

	w := &RotatingWriter{
		path:       cfg.Path,
		maxSize:    maxSize,
		maxBackups: backups,
	}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.size = 0
	return err
}

func (w *RotatingWriter) open(mode int) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	if w.maxBackups == 0 {
		_ = os.Remove(w.path)
		return w.open(os.O_TRUNC)
	}
	for i := w.maxBackups - 1; i >= 1; i-- {
		from := backupName(w.path, i)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, backupName(w.path, i+1))
		}
	}
	if err := os.Rename(w.path, backupName(w.path, 1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return w.open(os.O_TRUNC)
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
