package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStore keeps assets as flat files under a single directory.
type LocalStore struct {
	root   string
	prefix string
	now    func() time.Time
}

func NewLocalStore(root, prefix string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("asset root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &LocalStore{root: root, prefix: prefix, now: time.Now}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

// Store writes content to a new file. Existing files are never overwritten:
// on a name clash a numeric suffix is tried instead.
func (s *LocalStore) Store(ctx context.Context, content io.Reader, _ int64, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	safeName := SanitizeName(originalName)
	now := s.now()

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		filename := candidateName(now, safeName, attempt)
		target := filepath.Join(s.root, filename)

		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create asset: %w", err)
		}

		if _, err := io.Copy(f, content); err != nil {
			_ = f.Close()
			_ = os.Remove(target)
			return "", fmt.Errorf("write asset: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(target)
			return "", fmt.Errorf("close asset: %w", err)
		}

		return joinRef(s.prefix, filename), nil
	}

	return "", ErrNameExhausted
}

// Remove deletes the file behind ref. A missing file is not an error.
func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	name, ok := filenameFromRef(ref)
	if !ok {
		return nil
	}

	if err := os.Remove(filepath.Join(s.root, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (*Object, error) {
	name, ok := filenameFromRef(ref)
	if !ok {
		return nil, ErrNotExist
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("open asset: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotExist
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("detect asset type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rewind asset: %w", err)
	}

	return &Object{
		Name:        name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: mtype.String(),
		Content:     f,
	}, nil
}
