package script

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mnohosten/querybook/pkg/descriptor"
	"github.com/mnohosten/querybook/pkg/document"
)

const yamlScript = `
collection: library
documents:
  - {title: Dune, genre: Fiction, published_year: 1965, price: 9.99}
  - {title: Emma, genre: Romance, published_year: 1815, price: 8.5}
operations:
  - op: find
    filter: {genre: Fiction}
    sort: {price: -1}
    limit: 5
  - op: updateOne
    filter: {title: Dune}
    update: {$set: {in_stock: false}}
  - op: deleteOne
    filter: {title: Emma}
  - op: aggregate
    pipeline:
      - $group: {_id: $genre, count: {$sum: 1}}
  - op: createIndex
    keys: [{field: author, direction: 1}, {field: published_year, direction: -1}]
`

func TestDecodeYAML(t *testing.T) {
	s, err := Decode([]byte(yamlScript), FormatYAML)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s.Collection != "library" || len(s.Documents) != 2 || len(s.Operations) != 5 {
		t.Fatalf("Unexpected script: %+v", s)
	}
	if year := s.Documents[0]["published_year"]; year != int64(1965) {
		t.Errorf("Expected int64 year, got %T", year)
	}

	descs, err := s.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors failed: %v", err)
	}
	var kinds []descriptor.Kind
	for _, d := range descs {
		kinds = append(kinds, d.Kind())
	}
	want := []descriptor.Kind{descriptor.KindFind, descriptor.KindUpdateOne, descriptor.KindDeleteOne, descriptor.KindAggregate, descriptor.KindCreateIndex}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Unexpected kinds (-want +got):\n%s", diff)
	}
}

func TestDecodeJSONWholeNumbers(t *testing.T) {
	data := `{"documents": [{"title": "Dune", "published_year": 1965, "price": 9.99}],
	          "operations": [{"op": "find", "limit": 2}]}`
	s, err := Decode([]byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s.Collection != "" || s.CollectionName() != DefaultCollection {
		t.Errorf("Expected default collection, got %q", s.CollectionName())
	}
	doc := s.Documents[0]
	if doc["published_year"] != int64(1965) || doc["price"] != 9.99 {
		t.Errorf("Unexpected number types: %T %T", doc["published_year"], doc["price"])
	}
}

func TestDecodeSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"no operations":      `{"documents": []}`,
		"unknown op":         `{"operations": [{"op": "find"}, {"op": "replaceOne"}]}`,
		"update no filter":   `{"operations": [{"op": "updateOne", "update": {"$set": {"a": 1}}}]}`,
		"negative limit":     `{"operations": [{"op": "find", "limit": -1}]}`,
		"unknown top key":    `{"operations": [], "session": "x"}`,
		"document not obj":   `{"documents": [1], "operations": []}`,
		"pipeline not array": `{"operations": [{"op": "aggregate", "pipeline": {}}]}`,
	}
	for name, data := range cases {
		_, err := Decode([]byte(data), FormatJSON)
		if !errors.Is(err, ErrInvalidScript) {
			t.Errorf("%s: expected ErrInvalidScript, got %v", name, err)
		}
	}

	_, err := Decode([]byte(`{"operations": [{"op": "find"}, {"op": "replaceOne"}]}`), FormatJSON)
	if err == nil || !strings.Contains(err.Error(), "operations.1") {
		t.Errorf("Expected the failing operation index in %v", err)
	}

	if _, err := Decode([]byte("{"), FormatJSON); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("Expected ErrInvalidScript for broken JSON, got %v", err)
	}
	if _, err := Decode([]byte("operations: [\n"), FormatYAML); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("Expected ErrInvalidScript for broken YAML, got %v", err)
	}
}

func TestDescriptorsReportIndex(t *testing.T) {
	s := &Script{Operations: []map[string]interface{}{
		{"op": "find"},
		{"op": "deleteOne", "filter": map[string]interface{}{}},
	}}
	_, err := s.Descriptors()
	if !errors.Is(err, descriptor.ErrInvalidDescriptor) {
		t.Fatalf("Expected ErrInvalidDescriptor, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "operation 1:") {
		t.Errorf("Expected operation index in %q", err.Error())
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		path        string
		format      Format
		compression Compression
	}{
		{"queries.json", FormatJSON, CompressionNone},
		{"queries.yaml", FormatYAML, CompressionNone},
		{"dir/Queries.YML", FormatYAML, CompressionNone},
		{"queries.json.zst", FormatJSON, CompressionZstd},
		{"queries.yaml.sz", FormatYAML, CompressionSnappy},
	}
	for _, tc := range cases {
		f, c, err := Detect(tc.path)
		if err != nil {
			t.Fatalf("Detect(%q) failed: %v", tc.path, err)
		}
		if f != tc.format || c != tc.compression {
			t.Errorf("Detect(%q) = %v/%v, want %v/%v", tc.path, f, c, tc.format, tc.compression)
		}
	}
	if _, _, err := Detect("queries.txt"); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("Expected ErrInvalidScript, got %v", err)
	}
}

func TestSaveLoadCompressed(t *testing.T) {
	original, err := Decode([]byte(yamlScript), FormatYAML)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	dir := t.TempDir()
	for _, name := range []string{"s.json", "s.json.zst", "s.yaml.sz", "s.yml.zst"} {
		path := filepath.Join(dir, name)
		if err := Save(path, original); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", name, err)
		}
		if diff := cmp.Diff(original, loaded); diff != "" {
			t.Errorf("%s: script changed (-saved +loaded):\n%s", name, diff)
		}
	}
}

func TestLoadCorruptCompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidScript) {
		t.Errorf("Expected ErrInvalidScript, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestExporter(t *testing.T) {
	doc := document.NewDocument()
	doc.Set("_id", document.ObjectID{1})
	doc.Set("title", "Dune")
	doc.Set("tags", []interface{}{"classic", map[string]interface{}{"k": 1}})

	var buf bytes.Buffer
	if err := NewExporter(false).Export(&buf, []*document.Document{doc}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	want := `[{"_id":"010000000000000000000000","title":"Dune","tags":["classic",{"k":1}]}]` + "\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n got %s\nwant %s", buf.String(), want)
	}

	buf.Reset()
	if err := NewExporter(false).ExportValue(&buf, map[string]interface{}{"deletedCount": 0}); err != nil {
		t.Fatalf("ExportValue failed: %v", err)
	}
	if buf.String() != `{"deletedCount":0}`+"\n" {
		t.Errorf("Unexpected output: %s", buf.String())
	}
}
