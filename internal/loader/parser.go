package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// Format identifies the encoding of a rules file
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the format from a file name
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parser decodes rules files. Three shapes are accepted: a mapping with a
// rules list, a bare list of rules, or a single rule mapping. An empty file
// holds zero rules. Unknown keys are rejected.
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and decodes one rules file
func (p *Parser) ParseFile(path string) (*domain.RuleSet, *domain.LoadError) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, &domain.LoadError{
			FilePath: path,
			Error:    fmt.Sprintf("unsupported file extension: %s", filepath.Ext(path)),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{
			FilePath: path,
			Error:    fmt.Sprintf("failed to read file: %v", err),
		}
	}

	set, loadErr := p.parse(data, format, path)
	if loadErr != nil {
		return nil, loadErr
	}
	set.FilePath = path
	return set, nil
}

// ParseContent decodes rules from bytes without file context
func (p *Parser) ParseContent(data []byte, format Format) (*domain.RuleSet, error) {
	set, loadErr := p.parse(data, format, "content."+string(format))
	if loadErr != nil {
		return nil, errors.New(loadErr.Error)
	}
	return set, nil
}

func (p *Parser) parse(data []byte, format Format, path string) (*domain.RuleSet, *domain.LoadError) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &domain.RuleSet{Rules: []domain.PatchRule{}}, nil
	}

	var (
		file domain.RuleFile
		err  error
	)
	switch format {
	case FormatYAML:
		file, err = decodeYAML(data)
	case FormatJSON:
		file, err = decodeJSON(data)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return nil, &domain.LoadError{
			FilePath: path,
			Error:    fmt.Sprintf("failed to parse %s: %v", strings.ToUpper(string(format)), err),
			Line:     errorLine(data, err),
		}
	}

	if file.Rules == nil {
		file.Rules = []domain.PatchRule{}
	}
	return &domain.RuleSet{
		Name:        file.Name,
		Description: file.Description,
		Rules:       file.Rules,
	}, nil
}

func decodeYAML(data []byte) (domain.RuleFile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return domain.RuleFile{}, err
	}

	shape := &root
	if shape.Kind == yaml.DocumentNode && len(shape.Content) > 0 {
		shape = shape.Content[0]
	}
	if shape.Kind == 0 || shape.Kind == yaml.DocumentNode {
		// comments only
		return domain.RuleFile{}, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file domain.RuleFile
	switch {
	case shape.Kind == yaml.SequenceNode:
		err := dec.Decode(&file.Rules)
		return file, err
	case shape.Kind == yaml.MappingNode && yamlHasKey(shape, "type"):
		var rule domain.PatchRule
		if err := dec.Decode(&rule); err != nil {
			return file, err
		}
		file.Rules = []domain.PatchRule{rule}
		return file, nil
	case shape.Kind == yaml.MappingNode:
		err := dec.Decode(&file)
		return file, err
	}
	return file, fmt.Errorf("line %d: expected a mapping or a list of rules", shape.Line)
}

func yamlHasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func decodeJSON(data []byte) (domain.RuleFile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var file domain.RuleFile
	var err error
	switch trimmed := bytes.TrimSpace(data); trimmed[0] {
	case '[':
		err = dec.Decode(&file.Rules)
	case '{':
		var fields map[string]json.RawMessage
		if err = json.Unmarshal(data, &fields); err != nil {
			return file, err
		}
		if _, single := fields["type"]; single {
			var rule domain.PatchRule
			if err = dec.Decode(&rule); err == nil {
				file.Rules = []domain.PatchRule{rule}
			}
		} else {
			err = dec.Decode(&file)
		}
	default:
		return file, errors.New("expected an object or an array of rules")
	}
	if err != nil {
		return file, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return file, errors.New("unexpected data after the rules")
	}
	return file, nil
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// errorLine extracts a 1-based line number from a decode error when possible
func errorLine(data []byte, err error) int {
	if err == nil {
		return 0
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return offsetLine(data, syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return offsetLine(data, typeErr.Offset)
	}

	if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			return n
		}
	}
	return 0
}

func offsetLine(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

// LoadRulesFile reads, decodes and validates a standalone rules file. The
// rule set is named after the file when the file does not name itself. An
// unreadable file is an IO_ERROR; anything wrong with its content is
// VALIDATION_FAILED.
func LoadRulesFile(path string, validator domain.Validator) (*domain.RuleSet, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, domain.NewAppError(domain.ErrValidationFailed,
			fmt.Sprintf("unsupported file extension: %s", filepath.Ext(path)), 422,
			map[string]any{"file_path": path})
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewIOError("read", path, err)
	}

	set, loadErr := NewParser().parse(data, format, path)
	if loadErr != nil {
		details := map[string]any{"file_path": loadErr.FilePath}
		if loadErr.Line > 0 {
			details["line"] = loadErr.Line
		}
		return nil, domain.NewAppError(domain.ErrValidationFailed, loadErr.Error, 422, details)
	}
	set.FilePath = path

	if set.Name == "" {
		set.Name = trimRuleExtension(filepath.Base(path))
	}
	if validator != nil {
		if err := validator.ValidateRuleSet(set); err != nil {
			return nil, err
		}
	}
	return set, nil
}
