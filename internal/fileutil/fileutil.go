// Package fileutil provides filesystem helpers shared across setlist
// components: canonical path normalization, content hashing, and
// hidden-entry checks. Nothing in this package ever writes to a source file.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath converts a path into its canonical indexed form: absolute,
// cleaned, and Unicode NFC normalized so the same file yields the same key on
// filesystems that store names in decomposed form.
func NormalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return norm.NFC.String(filepath.Clean(abs)), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsHidden reports whether the final path element starts with a dot.
func IsHidden(name string) bool {
	base := filepath.Base(name)
	return len(base) > 1 && strings.HasPrefix(base, ".")
}

// Exists reports whether the path exists at all.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsDir reports whether the path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
