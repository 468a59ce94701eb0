// Package scanner walks a directory tree and finds statement files to
// import.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
)

// Scanner finds statement files under a root directory.
type Scanner struct {
	rootDir string
}

// New creates a scanner for the given root directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is one found file with its import metadata.
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// Scan walks the directory tree and returns all statement files.
// Path structure: {root}/{source}/file.ext; files directly under the root
// use their own name as the source.
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir := expandHome(s.rootDir)

	var results []ScanResult
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isStatementFile(path) {
			return nil
		}

		meta, err := parser.NewMetadata(path, extractSource(path, rootDir), time.Now())
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", path, err)
		}

		results = append(results, ScanResult{Path: path, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return results, nil
}

// isStatementFile checks for a known statement extension.
func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".qif", ".csv", ".txt", ".ofx", ".qfx":
		return true
	}
	return false
}

// extractSource derives the import source from the path. The first
// directory under the root names the source ("mono/march.csv" imports as
// source "mono"); a file directly under the root falls back to its own
// name without extension.
func extractSource(filePath, rootDir string) string {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) >= 2 {
		return normalizeSourceName(parts[0])
	}

	base := filepath.Base(filePath)
	return normalizeSourceName(strings.TrimSuffix(base, filepath.Ext(base)))
}

// normalizeSourceName converts a directory name to a stable source id:
// "My Bank" and "my_bank" both become "my-bank".
func normalizeSourceName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	return name
}

// expandHome expands a leading ~ to the home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
