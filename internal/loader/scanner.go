// Package loader discovers, decodes and stores named patch rule sets kept as
// YAML or JSON files under a rules directory.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ValidRuleExtensions defines the file suffixes recognized as rule set files
var ValidRuleExtensions = []string{".patch.yaml", ".patch.yml", ".patch.json"}

// ScannedFile is a discovered rule set file
type ScannedFile struct {
	Path string // full path to the file
	Name string // slash separated path relative to the root, without suffix
}

// Scanner walks a rules directory for rule set files
type Scanner struct {
	root string
}

// NewScanner creates a scanner rooted at dir
func NewScanner(dir string) *Scanner {
	return &Scanner{root: dir}
}

// Root returns the scanned directory
func (s *Scanner) Root() string {
	return s.root
}

// Scan recursively lists rule set files sorted by name. A missing root
// yields no files.
func (s *Scanner) Scan(ctx context.Context) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == s.root {
				return err
			}
			// skip unreadable entries
			return nil
		}

		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !isRuleFile(path) {
			return nil
		}

		name, err := s.NameFor(path)
		if err != nil {
			return nil
		}
		files = append(files, ScannedFile{Path: path, Name: name})
		return nil
	})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// NameFor derives the rule set name of a file below the root
func (s *Scanner) NameFor(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", err
	}
	return trimRuleExtension(filepath.ToSlash(rel)), nil
}

// PathFor is the file a rule set with the given name is written to
func (s *Scanner) PathFor(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name)+ValidRuleExtensions[0])
}

func isRuleFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range ValidRuleExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// trimRuleExtension strips a rule set suffix, or the plain extension for
// files that do not carry one
func trimRuleExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range ValidRuleExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
