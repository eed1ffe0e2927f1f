package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/freewebtopdf/source-patcher/internal/domain"
	"github.com/freewebtopdf/source-patcher/internal/storage"
)

const ruleFileMode = 0o644

// Writer persists rule sets as YAML files
type Writer struct{}

// NewWriter creates a new Writer
func NewWriter() *Writer {
	return &Writer{}
}

// WriteRuleSet writes a rule set to path atomically, creating parent
// directories as needed
func (w *Writer) WriteRuleSet(set *domain.RuleSet, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := Marshal(set)
	if err != nil {
		return err
	}

	return storage.WriteFileAtomic(path, data, ruleFileMode)
}

// Marshal renders a rule set in the mapping form the parser reads back
func Marshal(set *domain.RuleSet) ([]byte, error) {
	file := domain.RuleFile{
		Name:        set.Name,
		Description: set.Description,
		Rules:       set.Rules,
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule set to YAML: %w", err)
	}
	return data, nil
}

// DeleteRuleFile removes a rule set file. A missing file is not an error.
func (w *Writer) DeleteRuleFile(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete rule file %s: %w", path, err)
	}
	return nil
}
