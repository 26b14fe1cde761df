package scriptcore

import (
	"fmt"
	"path"
	"strings"
)

// DefaultExtension is appended to a module id whose final segment has no
// extension, keeping extension handling idempotent.
const DefaultExtension = ".js"

// PathNormalizer canonicalizes raw module identifiers into the slash-
// separated, extension-normalized form every ModuleRecord is keyed by.
// It is stateless and safe for concurrent use.
type PathNormalizer struct {
	// DefaultExt is appended when a request's final segment has no
	// extension. Defaults to DefaultExtension when empty.
	DefaultExt string
}

// NewPathNormalizer returns a normalizer using DefaultExtension.
func NewPathNormalizer() *PathNormalizer {
	return &PathNormalizer{DefaultExt: DefaultExtension}
}

// Normalize converts backslashes to forward slashes, strips a leading
// "./", collapses "./" segments, resolves ".." segments, trims whitespace,
// appends the default extension when absent, and rejects results that are
// empty or that escape above the root via "..".
//
// Normalize is idempotent: Normalize(Normalize(id)) == Normalize(id) for
// every id that normalizes successfully.
func (n *PathNormalizer) Normalize(raw string) (string, error) {
	ext := n.DefaultExt
	if ext == "" {
		ext = DefaultExtension
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty module id")
	}

	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.TrimPrefix(s, "./")

	cleaned := path.Clean(s)
	if cleaned == "." {
		return "", fmt.Errorf("empty module id after normalization")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("module id %q escapes its root", raw)
	}

	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", fmt.Errorf("empty module id after normalization")
	}

	if path.Ext(cleaned) == "" {
		cleaned += ext
	}

	return cleaned, nil
}
