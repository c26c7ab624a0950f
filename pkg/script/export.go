package script

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/mnohosten/querybook/pkg/document"
)

// Exporter writes result documents as a JSON array
type Exporter struct {
	Pretty bool // Enable pretty-printing (indentation)
}

// NewExporter creates a new JSON exporter
func NewExporter(pretty bool) *Exporter {
	return &Exporter{Pretty: pretty}
}

// Export writes documents to the writer. Field order follows the documents.
func (e *Exporter) Export(writer io.Writer, docs []*document.Document) error {
	exportDocs := make([]orderedDoc, 0, len(docs))
	for _, doc := range docs {
		exportDocs = append(exportDocs, e.prepareDocument(doc))
	}

	encoder := json.NewEncoder(writer)
	if e.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(exportDocs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportValue writes a single value, such as an update result
func (e *Exporter) ExportValue(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	if e.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(e.convertValue(v)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// orderedDoc keeps the document's field order when encoded
type orderedDoc struct {
	keys   []string
	values map[string]interface{}
}

func (o orderedDoc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Exporter) prepareDocument(doc *document.Document) orderedDoc {
	out := orderedDoc{keys: doc.Keys(), values: make(map[string]interface{}, doc.Len())}
	for _, key := range out.keys {
		value, _ := doc.Get(key)
		out.values[key] = e.convertValue(value)
	}
	return out
}

// convertValue converts document values to JSON-compatible types
func (e *Exporter) convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case document.ObjectID:
		return v.Hex()
	case time.Time:
		return v.Format(time.RFC3339)
	case *document.Document:
		return e.prepareDocument(v)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, elem := range v {
			result[i] = e.convertValue(elem)
		}
		return result
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[key] = e.convertValue(val)
		}
		return result
	default:
		return v
	}
}
