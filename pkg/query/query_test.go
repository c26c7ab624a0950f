package query

import (
	"errors"
	"testing"

	"github.com/mnohosten/querybook/pkg/document"
	"github.com/mnohosten/querybook/pkg/index"
)

func newBook(title, author, genre string, year int64, price float64, inStock bool) *document.Document {
	doc := document.NewDocument()
	doc.Set("title", title)
	doc.Set("author", author)
	doc.Set("genre", genre)
	doc.Set("published_year", year)
	doc.Set("price", price)
	doc.Set("in_stock", inStock)
	return doc
}

func library() []*document.Document {
	return []*document.Document{
		newBook("Dune", "Frank Herbert", "Fiction", 1965, 9.99, true),
		newBook("Sapiens", "Yuval Noah Harari", "History", 2011, 14.5, true),
		newBook("Educated", "Tara Westover", "Memoir", 2018, 12.0, false),
		newBook("The Martian", "Andy Weir", "Fiction", 2011, 8.75, true),
		newBook("Atomic Habits", "James Clear", "Self-Help", 2018, 11.2, true),
	}
}

func mustParse(t *testing.T, spec map[string]interface{}) Filter {
	t.Helper()
	f, err := ParseFilter(spec)
	if err != nil {
		t.Fatalf("ParseFilter(%v) failed: %v", spec, err)
	}
	return f
}

func titles(docs []*document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		v, _ := d.Get("title")
		out[i], _ = v.(string)
	}
	return out
}

func TestParseFilterComparison(t *testing.T) {
	docs := library()
	tests := []struct {
		name string
		spec map[string]interface{}
		want int
	}{
		{"empty", map[string]interface{}{}, 5},
		{"equality", map[string]interface{}{"genre": "Fiction"}, 2},
		{"conjunction", map[string]interface{}{"in_stock": true, "published_year": map[string]interface{}{"$gt": 2010}}, 3},
		{"range", map[string]interface{}{"price": map[string]interface{}{"$gte": 9.99, "$lt": 12}}, 2},
		{"int matches float", map[string]interface{}{"price": 12}, 1},
		{"ne", map[string]interface{}{"genre": map[string]interface{}{"$ne": "Fiction"}}, 3},
		{"in", map[string]interface{}{"genre": map[string]interface{}{"$in": []interface{}{"Memoir", "History"}}}, 2},
		{"nin", map[string]interface{}{"genre": map[string]interface{}{"$nin": []interface{}{"Fiction"}}}, 3},
		{"regex", map[string]interface{}{"title": map[string]interface{}{"$regex": "^the", "$options": "i"}}, 1},
		{"or", map[string]interface{}{"$or": []interface{}{
			map[string]interface{}{"genre": "Memoir"},
			map[string]interface{}{"price": map[string]interface{}{"$lt": 9}},
		}}, 2},
		{"nor", map[string]interface{}{"$nor": []interface{}{
			map[string]interface{}{"genre": "Fiction"},
			map[string]interface{}{"in_stock": false},
		}}, 2},
		{"not", map[string]interface{}{"published_year": map[string]interface{}{"$not": map[string]interface{}{"$gt": 2011}}}, 3},
		{"type mismatch never matches", map[string]interface{}{"published_year": map[string]interface{}{"$gt": "2000"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, tt.spec)
			got := 0
			for _, doc := range docs {
				if f.Match(doc) {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("Expected %d matches, got %d (filter %s)", tt.want, got, f)
			}
		})
	}
}

func TestAbsentFieldNeverMatches(t *testing.T) {
	doc := newBook("Dune", "Frank Herbert", "Fiction", 1965, 9.99, true)

	specs := []map[string]interface{}{
		{"isbn": nil},
		{"isbn": map[string]interface{}{"$ne": "123"}},
		{"isbn": map[string]interface{}{"$nin": []interface{}{"123"}}},
		{"isbn": map[string]interface{}{"$lt": 5}},
		{"isbn": map[string]interface{}{"$not": map[string]interface{}{"$eq": 1}}},
		{"isbn": map[string]interface{}{"$exists": true}},
	}
	for _, spec := range specs {
		if mustParse(t, spec).Match(doc) {
			t.Errorf("Filter %v must not match a document lacking the field", spec)
		}
	}

	if !mustParse(t, map[string]interface{}{"isbn": map[string]interface{}{"$exists": false}}).Match(doc) {
		t.Error("$exists: false must match a document lacking the field")
	}
}

func TestArrayFieldMatching(t *testing.T) {
	doc := document.NewDocument()
	doc.Set("tags", []interface{}{"classic", "space"})
	doc.Set("meta", map[string]interface{}{"pages": int64(412)})

	if !mustParse(t, map[string]interface{}{"tags": "space"}).Match(doc) {
		t.Error("Equality must match an array element")
	}
	if !mustParse(t, map[string]interface{}{"tags": []interface{}{"classic", "space"}}).Match(doc) {
		t.Error("Equality must match the whole array")
	}
	if !mustParse(t, map[string]interface{}{"tags": map[string]interface{}{"$size": 2}}).Match(doc) {
		t.Error("$size 2 must match")
	}
	if !mustParse(t, map[string]interface{}{"meta.pages": map[string]interface{}{"$gte": 400}}).Match(doc) {
		t.Error("Dotted paths must reach nested fields")
	}
}

func TestParseFilterErrors(t *testing.T) {
	tests := []struct {
		spec map[string]interface{}
		want error
	}{
		{map[string]interface{}{"$where": "1"}, ErrUnknownOperator},
		{map[string]interface{}{"a": map[string]interface{}{"$near": 1}}, ErrUnknownOperator},
		{map[string]interface{}{"a": map[string]interface{}{"$in": "x"}}, ErrInvalidFilter},
		{map[string]interface{}{"a": map[string]interface{}{"$gt": 1, "b": 2}}, ErrInvalidFilter},
		{map[string]interface{}{"a": map[string]interface{}{"$regex": "("}}, ErrInvalidFilter},
		{map[string]interface{}{"a": map[string]interface{}{"$regex": "x", "$options": "z"}}, ErrInvalidFilter},
		{map[string]interface{}{"a": map[string]interface{}{"$options": "i"}}, ErrInvalidFilter},
		{map[string]interface{}{"$or": []interface{}{}}, ErrInvalidFilter},
		{map[string]interface{}{"$and": "x"}, ErrInvalidFilter},
		{map[string]interface{}{"": 1}, ErrInvalidFilter},
	}
	for _, tt := range tests {
		if _, err := ParseFilter(tt.spec); !errors.Is(err, tt.want) {
			t.Errorf("ParseFilter(%v): expected %v, got %v", tt.spec, tt.want, err)
		}
	}
}

func TestEqualities(t *testing.T) {
	f := mustParse(t, map[string]interface{}{
		"author":         "Frank Herbert",
		"published_year": int64(1965),
		"price":          map[string]interface{}{"$gt": 5},
		"tags":           []interface{}{"a"},
	})
	eqs := Equalities(f)
	if len(eqs) != 2 || eqs["author"] != "Frank Herbert" || eqs["published_year"] != int64(1965) {
		t.Errorf("Unexpected equalities %v", eqs)
	}

	if len(Equalities(mustParse(t, map[string]interface{}{"$or": []interface{}{
		map[string]interface{}{"a": 1},
	}}))) != 0 {
		t.Error("Disjunctions must not yield equalities")
	}
}

func TestProjection(t *testing.T) {
	doc := newBook("Dune", "Frank Herbert", "Fiction", 1965, 9.99, true)
	doc.Set("_id", "b1")

	p, err := ParseProjection(map[string]interface{}{"title": 1, "author": true, "_id": 0})
	if err != nil {
		t.Fatalf("ParseProjection failed: %v", err)
	}
	out := p.Apply(doc)
	keys := out.Keys()
	if len(keys) != 2 || keys[0] != "title" || keys[1] != "author" {
		t.Errorf("Expected [title author] in document order, got %v", keys)
	}

	p, _ = ParseProjection(map[string]interface{}{"price": 0, "in_stock": 0})
	out = p.Apply(doc)
	if out.Has("price") || out.Has("in_stock") || !out.Has("_id") || !out.Has("title") {
		t.Errorf("Unexpected exclusion result %v", out)
	}

	p, _ = ParseProjection(map[string]interface{}{"_id": 1})
	if out := p.Apply(doc); out.Len() != 1 || !out.Has("_id") {
		t.Errorf("Expected only _id, got %v", out)
	}

	if p, _ := ParseProjection(nil); p != nil {
		t.Error("Empty projection must be nil")
	}
	if _, err := ParseProjection(map[string]interface{}{"title": 1, "price": 0}); !errors.Is(err, ErrInvalidProjection) {
		t.Errorf("Expected ErrInvalidProjection, got %v", err)
	}
	if _, err := ParseProjection(map[string]interface{}{"title": "yes"}); !errors.Is(err, ErrInvalidProjection) {
		t.Errorf("Expected ErrInvalidProjection, got %v", err)
	}
}

func TestParseSort(t *testing.T) {
	fields, err := ParseSort(map[string]interface{}{"price": -1})
	if err != nil || len(fields) != 1 || fields[0].Ascending {
		t.Fatalf("Unexpected result %v, %v", fields, err)
	}

	fields, err = ParseSort([]interface{}{
		map[string]interface{}{"field": "genre"},
		map[string]interface{}{"field": "price", "direction": int64(-1)},
	})
	if err != nil {
		t.Fatalf("ParseSort failed: %v", err)
	}
	if fields[0].String() != "genre:1" || fields[1].String() != "price:-1" {
		t.Errorf("Unexpected fields %v", fields)
	}

	invalid := []interface{}{
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"a": 0},
		[]interface{}{map[string]interface{}{"field": ""}},
		[]interface{}{map[string]interface{}{"field": "a"}, map[string]interface{}{"field": "a"}},
		"price",
	}
	for _, spec := range invalid {
		if _, err := ParseSort(spec); !errors.Is(err, ErrInvalidSort) {
			t.Errorf("ParseSort(%v): expected ErrInvalidSort, got %v", spec, err)
		}
	}
}

func TestSortIsStable(t *testing.T) {
	docs := library()
	SortDocuments(docs, []SortField{{Field: "published_year", Ascending: false}})

	got := titles(docs)
	want := []string{"Educated", "Atomic Habits", "Sapiens", "The Martian", "Dune"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestExecutorPipeline(t *testing.T) {
	ex := NewExecutor(library())

	q := NewQuery(mustParse(t, map[string]interface{}{"in_stock": true})).
		WithSort([]SortField{{Field: "price", Ascending: true}}).
		WithSkip(1).
		WithLimit(2)
	p, _ := ParseProjection(map[string]interface{}{"title": 1})
	q = q.WithProjection(p)

	results, stats := ex.ExecuteWithStats(q)
	got := titles(results)
	if len(got) != 2 || got[0] != "Dune" || got[1] != "Atomic Habits" {
		t.Errorf("Unexpected results %v", got)
	}
	if stats.DocsExamined != 5 || stats.Returned != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if results[0].Has("price") {
		t.Error("Projection must be applied")
	}

	if n := ex.Count(q); n != 4 {
		t.Errorf("Count ignores skip and limit, expected 4 got %d", n)
	}
}

func TestPaginationPartitions(t *testing.T) {
	ex := NewExecutor(library())
	base := NewQuery(nil).WithSort([]SortField{{Field: "title", Ascending: true}})
	all := titles(ex.Execute(base))

	var pages []string
	for skip := 0; skip < len(all); skip += 2 {
		pages = append(pages, titles(ex.Execute(base.WithSkip(skip).WithLimit(2)))...)
	}
	if len(pages) != len(all) {
		t.Fatalf("Pages cover %d documents, expected %d", len(pages), len(all))
	}
	for i := range all {
		if pages[i] != all[i] {
			t.Fatalf("Pages %v differ from full result %v", pages, all)
		}
	}

	if got := ex.Execute(base.WithSkip(10)); len(got) != 0 {
		t.Errorf("Skip past the end must return nothing, got %d", len(got))
	}
}

func TestQueryValidateAndKey(t *testing.T) {
	if err := NewQuery(nil).WithSkip(-1).Validate(); err == nil {
		t.Error("Negative skip must be rejected")
	}
	if err := NewQuery(nil).WithLimit(-1).Validate(); err == nil {
		t.Error("Negative limit must be rejected")
	}

	a := NewQuery(mustParse(t, map[string]interface{}{"genre": "Fiction"})).WithLimit(3)
	b := NewQuery(mustParse(t, map[string]interface{}{"genre": "Fiction"})).WithLimit(3)
	c := b.WithLimit(4)
	if a.Key() != b.Key() {
		t.Errorf("Equal queries must share a key: %q vs %q", a.Key(), b.Key())
	}
	if b.Key() == c.Key() {
		t.Error("Different limits must yield different keys")
	}
	if b.Limit() != 3 {
		t.Error("WithLimit must not modify the receiver")
	}
}

func TestFilterKeysAreDistinct(t *testing.T) {
	filters := map[string]Filter{
		"not":   mustParse(t, map[string]interface{}{"price": map[string]interface{}{"$not": map[string]interface{}{"$gt": 10}}}),
		"nor":   mustParse(t, map[string]interface{}{"$nor": []interface{}{map[string]interface{}{"price": map[string]interface{}{"$gt": 10}}}}),
		"and{}": And{},
		"or{}":  Or{},
	}
	seen := map[string]string{}
	for name, f := range filters {
		key := NewQuery(f).Key()
		if other, ok := seen[key]; ok {
			t.Errorf("%s and %s share the key %q", name, other, key)
		}
		seen[key] = name
	}
}

func TestPlanner(t *testing.T) {
	byAuthor, _ := index.NewIndex(&index.IndexConfig{Keys: index.KeySpec{{Field: "author", Direction: 1}}})
	compound, _ := index.NewIndex(&index.IndexConfig{Keys: index.KeySpec{
		{Field: "author", Direction: 1},
		{Field: "published_year", Direction: 1},
	}})
	planner := NewQueryPlanner([]*index.Index{byAuthor, compound})

	plan := planner.Plan(NewQuery(mustParse(t, map[string]interface{}{"author": "Andy Weir"})))
	if !plan.UseIndex || plan.IndexName != "author_1" {
		t.Errorf("Expected author_1, got %+v", plan)
	}

	plan = planner.Plan(NewQuery(mustParse(t, map[string]interface{}{
		"author":         "Andy Weir",
		"published_year": 2011,
		"genre":          "Fiction",
	})))
	if plan.IndexName != "author_1_published_year_1" || len(plan.PrefixKey) != 2 {
		t.Errorf("Expected the longer prefix to win, got %+v", plan)
	}
	if len(plan.FilterSteps) != 1 || plan.FilterSteps[0] != "genre" {
		t.Errorf("Expected genre to remain as a filter step, got %v", plan.FilterSteps)
	}
	if plan.Explain()["stage"] != "IXSCAN" {
		t.Errorf("Unexpected explain %v", plan.Explain())
	}

	plan = planner.Plan(NewQuery(mustParse(t, map[string]interface{}{"published_year": 2011})))
	if plan.UseIndex {
		t.Error("An index must not be used without its leading field")
	}
	if plan.Explain()["stage"] != "COLLSCAN" {
		t.Errorf("Unexpected explain %v", plan.Explain())
	}
}
