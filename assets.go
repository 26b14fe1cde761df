package scriptcore

import (
	"os"
	"path/filepath"
)

// FileAssetReader implements core.AssetReader over a filesystem directory
// tree, reading a module id's source text relative to Root. It is the
// reader cmd/scripthost wires by default; embedding hosts with their own
// asset pipeline (packed archives, virtual filesystems) implement
// core.AssetReader directly instead.
type FileAssetReader struct {
	Root string
}

// NewFileAssetReader returns a FileAssetReader rooted at root.
func NewFileAssetReader(root string) *FileAssetReader {
	return &FileAssetReader{Root: root}
}

// ReadText reads moduleID's source text from Root/moduleID.
func (f *FileAssetReader) ReadText(moduleID string) (string, error) {
	b, err := os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(moduleID)))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
