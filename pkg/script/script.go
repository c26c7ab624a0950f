// Package script loads query scripts: an optional set of seed documents
// followed by an ordered list of operations, stored as JSON or YAML and
// optionally compressed.
package script

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/mnohosten/querybook/pkg/descriptor"
	"github.com/mnohosten/querybook/pkg/document"
)

// DefaultCollection is used when a script names no collection
const DefaultCollection = "books"

// ErrInvalidScript is returned for scripts that cannot be decoded or do not
// match the script schema
var ErrInvalidScript = errors.New("invalid script")

//go:embed schema.json
var schemaJSON string

var schema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("script schema: %v", err))
	}
	return s
}

// Script is a decoded query script. Collection is empty when the script
// names none.
type Script struct {
	Collection string                   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Documents  []map[string]interface{} `json:"documents,omitempty" yaml:"documents,omitempty"`
	Operations []map[string]interface{} `json:"operations" yaml:"operations"`
}

// Load reads a script file. Format and compression follow the file name.
func Load(path string) (*Script, error) {
	format, compression, err := Detect(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	cd, err := newCodec(compression)
	if err != nil {
		return nil, err
	}
	defer cd.close()

	data, err = cd.decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidScript, path, err)
	}

	s, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save writes s to path, encoded and compressed according to the file name
func Save(path string, s *Script) error {
	format, compression, err := Detect(path)
	if err != nil {
		return err
	}

	data, err := Encode(s, format)
	if err != nil {
		return err
	}

	cd, err := newCodec(compression)
	if err != nil {
		return err
	}
	defer cd.close()

	if err := os.WriteFile(path, cd.compress(data), 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

// Decode parses and validates a script
func Decode(data []byte, format Format) (*Script, error) {
	var raw interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to decode JSON: %w", ErrInvalidScript, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to decode YAML: %w", ErrInvalidScript, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %v", ErrInvalidScript, format)
	}

	raw = parseValue(raw)
	if err := validate(raw); err != nil {
		return nil, err
	}

	top := raw.(map[string]interface{})
	s := &Script{}
	if name, ok := top["collection"].(string); ok {
		s.Collection = name
	}
	if docs, ok := top["documents"].([]interface{}); ok {
		for _, d := range docs {
			s.Documents = append(s.Documents, d.(map[string]interface{}))
		}
	}
	for _, op := range top["operations"].([]interface{}) {
		s.Operations = append(s.Operations, op.(map[string]interface{}))
	}
	return s, nil
}

// Encode renders s in the given format
func Encode(s *Script, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported format %v", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode script: %w", err)
	}
	return data, nil
}

func validate(raw interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %w", ErrInvalidScript, err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(errs, "; "))
}

// parseValue converts decoded values to document types. Whole JSON numbers
// become int64; YAML keys are always strings in a valid script.
func parseValue(value interface{}) interface{} {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
		return v
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = parseValue(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[key] = parseValue(val)
		}
		return out
	default:
		return document.Normalize(v)
	}
}

// CollectionName returns the script's collection or DefaultCollection
func (s *Script) CollectionName() string {
	if s.Collection == "" {
		return DefaultCollection
	}
	return s.Collection
}

// Descriptors builds the operations in order. The first invalid operation
// stops the build and is reported by index.
func (s *Script) Descriptors() ([]*descriptor.Descriptor, error) {
	out := make([]*descriptor.Descriptor, 0, len(s.Operations))
	for i, op := range s.Operations {
		d, err := descriptor.FromSpec(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
