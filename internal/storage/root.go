package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// logical layout under the upload root
const (
	TemplatesDir = "certificates/templates"
	OutputDir    = "certificates/output"
)

// Root is the configured base directory under which template files and
// generated artifacts live. Everything stored in the catalog and registry
// is addressed relative to it.
type Root struct {
	base string
}

func NewRoot(base string) Root {
	if base == "" {
		base = "./uploads"
	}
	return Root{base: base}
}

func (r Root) Base() string {
	return r.base
}

// Abs resolves a storage-relative path to an absolute filesystem path.
func (r Root) Abs(rel string) string {
	return filepath.Join(r.base, filepath.FromSlash(rel))
}

func (r Root) Exists(rel string) bool {
	_, err := os.Stat(r.Abs(rel))

	return err == nil
}

// EnsureParent creates the parent directory of a storage-relative path.
func (r Root) EnsureParent(rel string) error {
	return os.MkdirAll(filepath.Dir(r.Abs(rel)), 0o755)
}

// OutputPath builds a collision-free storage-relative path for a new
// artifact. Nanosecond timestamp plus a uuid fragment keeps concurrent
// issuances for the same participant from ever sharing a path.
func OutputPath(eventID, userID string, now time.Time) string {
	suffix := uuid.NewString()[:8]
	name := fmt.Sprintf("certificate-%s-%s-%d-%s.pdf", eventID, userID, now.UnixNano(), suffix)

	return filepath.ToSlash(filepath.Join(OutputDir, name))
}

// TemplatePath builds the storage-relative path for an uploaded template file.
func TemplatePath(filename string) string {
	return filepath.ToSlash(filepath.Join(TemplatesDir, filename))
}
