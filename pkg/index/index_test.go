package index

import (
	"errors"
	"testing"

	"github.com/mnohosten/querybook/pkg/document"
)

func book(title, author string, year int64) *document.Document {
	doc := document.NewDocument()
	doc.Set("title", title)
	doc.Set("author", author)
	doc.Set("published_year", year)
	return doc
}

func TestCompositeKey(t *testing.T) {
	t.Run("Compare equal keys", func(t *testing.T) {
		key1 := NewCompositeKey("NYC", int64(30))
		key2 := NewCompositeKey("NYC", int64(30))

		if key1.Compare(key2) != 0 {
			t.Error("Expected equal keys to compare as 0")
		}
	})

	t.Run("Compare less than", func(t *testing.T) {
		key1 := NewCompositeKey("Boston", int64(25))
		key2 := NewCompositeKey("NYC", int64(25))

		if key1.Compare(key2) != -1 {
			t.Error("Expected Boston < NYC")
		}
	})

	t.Run("Numbers compare across types", func(t *testing.T) {
		key1 := NewCompositeKey(int64(30))
		key2 := NewCompositeKey(float64(30))

		if key1.Compare(key2) != 0 {
			t.Error("Expected 30 == 30.0")
		}
	})

	t.Run("Compare different lengths", func(t *testing.T) {
		key1 := NewCompositeKey("NYC", int64(25))
		key2 := NewCompositeKey("NYC", int64(25), "Engineer")

		if key1.Compare(key2) != -1 {
			t.Error("Expected shorter key to be less than longer key")
		}
	})

	t.Run("Matches prefix", func(t *testing.T) {
		key := NewCompositeKey("NYC", int64(30), "Engineer")

		if !key.MatchesPrefix(NewCompositeKey("NYC")) {
			t.Error("Expected key to match prefix")
		}
		if key.MatchesPrefix(NewCompositeKey("Boston")) {
			t.Error("Expected key not to match prefix")
		}
	})
}

func TestParseKeySpec(t *testing.T) {
	spec, err := ParseKeySpec(map[string]interface{}{"title": 1})
	if err != nil {
		t.Fatalf("ParseKeySpec failed: %v", err)
	}
	if spec.Name() != "title_1" {
		t.Errorf("Expected title_1, got %s", spec.Name())
	}

	spec, err = ParseKeySpec([]interface{}{
		map[string]interface{}{"field": "author", "direction": int64(1)},
		map[string]interface{}{"field": "published_year", "direction": float64(-1)},
	})
	if err != nil {
		t.Fatalf("ParseKeySpec failed: %v", err)
	}
	if spec.Name() != "author_1_published_year_-1" {
		t.Errorf("Unexpected name %s", spec.Name())
	}

	invalid := []interface{}{
		nil,
		map[string]interface{}{},
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"title": 2},
		map[string]interface{}{"title": "text"},
		map[string]interface{}{"$title": 1},
		[]interface{}{},
		[]interface{}{"title"},
		[]interface{}{
			map[string]interface{}{"field": "a"},
			map[string]interface{}{"field": "a"},
		},
	}
	for _, in := range invalid {
		if _, err := ParseKeySpec(in); !errors.Is(err, ErrInvalidKeySpec) {
			t.Errorf("ParseKeySpec(%v): expected ErrInvalidKeySpec, got %v", in, err)
		}
	}
}

func TestKeySpecEqual(t *testing.T) {
	a := KeySpec{{Field: "author", Direction: 1}, {Field: "published_year", Direction: 1}}
	b := KeySpec{{Field: "author", Direction: 1}, {Field: "published_year", Direction: 1}}
	c := KeySpec{{Field: "published_year", Direction: 1}, {Field: "author", Direction: 1}}

	if !a.Equal(b) {
		t.Error("Expected identical specs to be equal")
	}
	if a.Equal(c) {
		t.Error("Field order must matter")
	}
}

func TestIndexLookup(t *testing.T) {
	idx, err := NewIndex(&IndexConfig{Keys: KeySpec{{Field: "author", Direction: 1}}})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	if idx.Name() != "author_1" {
		t.Errorf("Expected default name author_1, got %s", idx.Name())
	}

	docs := []*document.Document{
		book("Dune", "Herbert", 1965),
		book("Emma", "Austen", 1815),
		book("Children of Dune", "Herbert", 1976),
		book("Persuasion", "Austen", 1817),
	}
	for i, doc := range docs {
		if err := idx.Insert(doc, uint64(i+1)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	seqs, examined := idx.Lookup("Herbert")
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 3 {
		t.Errorf("Expected [1 3], got %v", seqs)
	}
	if examined < 2 {
		t.Errorf("Expected at least 2 keys examined, got %d", examined)
	}

	seqs, _ = idx.Lookup("Tolkien")
	if len(seqs) != 0 {
		t.Errorf("Expected no matches, got %v", seqs)
	}

	if !idx.Delete(docs[0], 1) {
		t.Fatal("Expected delete to find the posting")
	}
	if idx.Delete(docs[0], 1) {
		t.Error("Second delete must report false")
	}
	seqs, _ = idx.Lookup("Herbert")
	if len(seqs) != 1 || seqs[0] != 3 {
		t.Errorf("Expected [3], got %v", seqs)
	}
	if idx.Size() != 3 {
		t.Errorf("Expected size 3, got %d", idx.Size())
	}
}

func TestCompoundIndexPrefix(t *testing.T) {
	idx, err := NewIndex(&IndexConfig{Keys: KeySpec{
		{Field: "author", Direction: 1},
		{Field: "published_year", Direction: -1},
	}})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	idx.Insert(book("Emma", "Austen", 1815), 1)
	idx.Insert(book("Persuasion", "Austen", 1817), 2)
	idx.Insert(book("Dune", "Herbert", 1965), 3)

	seqs, _ := idx.Lookup("Austen")
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("Expected [1 2] in sequence order, got %v", seqs)
	}

	seqs, _ = idx.Lookup("Austen", int64(1817))
	if len(seqs) != 1 || seqs[0] != 2 {
		t.Errorf("Expected [2], got %v", seqs)
	}
}

func TestIndexAbsentFieldIsNull(t *testing.T) {
	idx, _ := NewIndex(&IndexConfig{Keys: KeySpec{{Field: "isbn", Direction: 1}}})
	idx.Insert(book("Emma", "Austen", 1815), 1)

	if idx.Size() != 1 {
		t.Fatalf("Documents without the field must still be indexed")
	}
	seqs, _ := idx.Lookup(nil)
	if len(seqs) != 1 {
		t.Errorf("Expected absent field to be indexed as null, got %v", seqs)
	}
}

func TestUniqueIndex(t *testing.T) {
	idx, _ := NewIndex(&IndexConfig{Name: IDIndexName, Keys: KeySpec{{Field: "_id", Direction: 1}}, Unique: true})

	a := document.NewDocument()
	a.Set("_id", "one")
	b := document.NewDocument()
	b.Set("_id", "one")

	if err := idx.Insert(a, 1); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := idx.Insert(b, 2); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if idx.Name() != IDIndexName {
		t.Errorf("Expected explicit name to win, got %s", idx.Name())
	}
}

func TestMultikeyFlag(t *testing.T) {
	idx, _ := NewIndex(&IndexConfig{Keys: KeySpec{{Field: "genres", Direction: 1}}})

	doc := document.NewDocument()
	doc.Set("genres", "Fiction")
	idx.Insert(doc, 1)
	if idx.IsMultikey() {
		t.Error("Scalar values must not set multikey")
	}

	arr := document.NewDocument()
	arr.Set("genres", []interface{}{"Fiction", "Classic"})
	idx.Insert(arr, 2)
	if !idx.IsMultikey() {
		t.Error("Array values must set multikey")
	}

	stats := idx.Stats()
	if stats["size"] != 2 || stats["multikey"] != true {
		t.Errorf("Unexpected stats %v", stats)
	}
}
