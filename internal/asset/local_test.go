package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()

	s, err := NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestLocalStore_StoreAndOpen(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	ref, err := s.Store(ctx, bytes.NewReader(pngHeader), -1, "cover.png")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if ref != "/uploads/1700000000000_cover.png" {
		t.Fatalf("unexpected ref %q", ref)
	}

	obj, err := s.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer obj.Content.Close()

	got, err := io.ReadAll(obj.Content)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, pngHeader) {
		t.Errorf("content mismatch")
	}
	if obj.Size != int64(len(pngHeader)) {
		t.Errorf("expected size %d, got %d", len(pngHeader), obj.Size)
	}
	if obj.ContentType != "image/png" {
		t.Errorf("expected image/png, got %q", obj.ContentType)
	}
}

func TestLocalStore_NeverOverwrites(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	first, err := s.Store(ctx, strings.NewReader("first"), -1, "same.txt")
	if err != nil {
		t.Fatalf("store first: %v", err)
	}
	second, err := s.Store(ctx, strings.NewReader("second"), -1, "same.txt")
	if err != nil {
		t.Fatalf("store second: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct refs, both %q", first)
	}
	if second != "/uploads/1700000000000-1_same.txt" {
		t.Errorf("unexpected suffixed ref %q", second)
	}

	for ref, want := range map[string]string{first: "first", second: "second"} {
		name, _ := filenameFromRef(ref)
		data, err := os.ReadFile(filepath.Join(s.Root(), name))
		if err != nil {
			t.Fatalf("read %s: %v", ref, err)
		}
		if string(data) != want {
			t.Errorf("%s: expected %q, got %q", ref, want, data)
		}
	}
}

func TestLocalStore_StoreTraversalStaysInRoot(t *testing.T) {
	s := newTestLocalStore(t)

	ref, err := s.Store(context.Background(), strings.NewReader("x"), -1, "../../escape.txt")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "1700000000000_escape.txt" {
		t.Fatalf("unexpected entries %v (ref %q)", entries, ref)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestLocalStore_FailedWriteLeavesNothing(t *testing.T) {
	s := newTestLocalStore(t)

	if _, err := s.Store(context.Background(), failingReader{}, -1, "broken.png"); err == nil {
		t.Fatalf("expected write error")
	}

	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files after failed write, got %d", len(entries))
	}
}

func TestLocalStore_RemoveIsIdempotent(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	ref, err := s.Store(ctx, strings.NewReader("data"), -1, "a.txt")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := s.Remove(ctx, ref); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, ref); err != nil {
		t.Fatalf("second remove should succeed, got %v", err)
	}

	if _, err := s.Open(ctx, ref); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist after remove, got %v", err)
	}
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s := newTestLocalStore(t)

	for _, ref := range []string{"/uploads/nope.png", "", "/uploads/.."} {
		if _, err := s.Open(context.Background(), ref); !errors.Is(err, ErrNotExist) {
			t.Errorf("Open(%q): expected ErrNotExist, got %v", ref, err)
		}
	}
}
