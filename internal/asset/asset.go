package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotExist      = errors.New("asset does not exist")
	ErrNameExhausted = errors.New("could not allocate a unique asset name")
)

// maxNameAttempts bounds the suffix search when two uploads share a millisecond and a name.
const maxNameAttempts = 100

// Store persists binary assets and hands back opaque references to them.
// size is the content length when known, or -1.
type Store interface {
	Store(ctx context.Context, content io.Reader, size int64, originalName string) (string, error)
	Remove(ctx context.Context, ref string) error
	Open(ctx context.Context, ref string) (*Object, error)
}

type Object struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
	Content     io.ReadCloser
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9.\-_%]`)

// SanitizeName keeps the base name of an uploaded file and replaces every
// character outside [A-Za-z0-9.-_%] with an underscore.
func SanitizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// GenerateName derives a stored filename from the submission time and the
// uploaded name.
func GenerateName(now time.Time, originalName string) string {
	return candidateName(now, SanitizeName(originalName), 0)
}

func candidateName(now time.Time, safeName string, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("%d_%s", now.UnixMilli(), safeName)
	}
	return fmt.Sprintf("%d-%d_%s", now.UnixMilli(), attempt, safeName)
}

// filenameFromRef extracts the stored filename from a reference. Only the
// last path element is used so a reference can never address anything
// outside the store.
func filenameFromRef(ref string) (string, bool) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" {
		return "", false
	}
	name := path.Base(ref)
	if name == "." || name == "/" || name == ".." {
		return "", false
	}
	return name, true
}

func joinRef(prefix, filename string) string {
	return "/" + strings.Trim(prefix, "/") + "/" + filename
}
