// Package config loads runtime settings and case manifests.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath replaces a leading ~ with the home directory and expands
// $VAR references.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}

// ResolveDocumentPath expands a document path from a manifest. Relative
// paths are taken relative to the manifest's directory.
func ResolveDocumentPath(manifestPath, documentPath string) string {
	path := ExpandPath(documentPath)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(ExpandPath(manifestPath)), path)
}
