package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mnohosten/querybook/pkg/document"
)

// IDIndexName is the name of the index every collection keeps on _id
const IDIndexName = "_id_"

// entry is one posting: the key extracted from a document plus the
// document's insertion sequence number
type entry struct {
	key *CompositeKey
	seq uint64
}

// Index is an ordered secondary index over one or more fields. Entries are
// kept sorted by key (honouring each field's direction), ties broken by
// insertion sequence.
type Index struct {
	name     string
	spec     KeySpec
	isUnique bool
	entries  []entry
	multikey bool
	lookups  int64
	mu       sync.RWMutex
}

// IndexConfig holds configuration for creating an index
type IndexConfig struct {
	Name   string // defaults to Keys.Name()
	Keys   KeySpec
	Unique bool
}

// NewIndex creates a new, empty index
func NewIndex(config *IndexConfig) (*Index, error) {
	if err := config.Keys.Validate(); err != nil {
		return nil, err
	}
	name := config.Name
	if name == "" {
		name = config.Keys.Name()
	}
	return &Index{
		name:     name,
		spec:     append(KeySpec(nil), config.Keys...),
		isUnique: config.Unique,
	}, nil
}

// KeyFor extracts the index key of doc. Absent fields are indexed as null.
func (idx *Index) KeyFor(doc *document.Document) *CompositeKey {
	values := make([]interface{}, len(idx.spec))
	for i, f := range idx.spec {
		if v, ok := doc.GetPath(f.Field); ok {
			values[i] = v
		}
	}
	return NewCompositeKey(values...)
}

func (idx *Index) compare(a, b *CompositeKey) int {
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	for i := 0; i < n; i++ {
		cmp := document.Compare(a.Values[i], b.Values[i])
		if cmp != 0 {
			if idx.spec[i].Direction < 0 {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}

// Insert adds doc under the given sequence number
func (idx *Index) Insert(doc *document.Document, seq uint64) error {
	key := idx.KeyFor(doc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos := sort.Search(len(idx.entries), func(i int) bool {
		cmp := idx.compare(idx.entries[i].key, key)
		return cmp > 0 || (cmp == 0 && idx.entries[i].seq >= seq)
	})

	if idx.isUnique {
		if pos > 0 && idx.compare(idx.entries[pos-1].key, key) == 0 {
			return fmt.Errorf("%w in index %s: %v", ErrDuplicateKey, idx.name, key)
		}
		if pos < len(idx.entries) && idx.compare(idx.entries[pos].key, key) == 0 {
			return fmt.Errorf("%w in index %s: %v", ErrDuplicateKey, idx.name, key)
		}
	}

	for _, v := range key.Values {
		if _, isArray := v.([]interface{}); isArray {
			idx.multikey = true
		}
	}

	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = entry{key: key, seq: seq}
	return nil
}

// Delete removes the posting of doc stored under seq
func (idx *Index) Delete(doc *document.Document, seq uint64) bool {
	key := idx.KeyFor(doc)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos := sort.Search(len(idx.entries), func(i int) bool {
		cmp := idx.compare(idx.entries[i].key, key)
		return cmp > 0 || (cmp == 0 && idx.entries[i].seq >= seq)
	})
	if pos >= len(idx.entries) || idx.entries[pos].seq != seq {
		return false
	}
	idx.entries = append(idx.entries[:pos], idx.entries[pos+1:]...)
	return true
}

// Lookup returns the sequence numbers of all entries whose leading key
// values equal prefix, in ascending sequence order, along with the number
// of index keys examined.
func (idx *Index) Lookup(prefix ...interface{}) ([]uint64, int) {
	if len(prefix) > len(idx.spec) {
		prefix = prefix[:len(idx.spec)]
	}
	pk := NewCompositeKey(prefix...)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.lookups++

	start := sort.Search(len(idx.entries), func(i int) bool {
		return idx.compare(idx.entries[i].key, pk) >= 0
	})

	var seqs []uint64
	examined := 0
	for i := start; i < len(idx.entries); i++ {
		examined++
		if !idx.entries[i].key.MatchesPrefix(pk) {
			break
		}
		seqs = append(seqs, idx.entries[i].seq)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, examined
}

// Size returns the number of entries in the index
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Name returns the index name
func (idx *Index) Name() string {
	return idx.name
}

// Keys returns a copy of the key specification
func (idx *Index) Keys() KeySpec {
	return append(KeySpec(nil), idx.spec...)
}

// FieldPaths returns all field paths this index covers
func (idx *Index) FieldPaths() []string {
	return idx.spec.Fields()
}

// IsCompound returns true if this is a compound index (multiple fields)
func (idx *Index) IsCompound() bool {
	return len(idx.spec) > 1
}

// IsUnique returns whether this is a unique index
func (idx *Index) IsUnique() bool {
	return idx.isUnique
}

// IsMultikey reports whether any indexed document held an array in an
// indexed field. Equality lookups cannot serve array-element matches.
func (idx *Index) IsMultikey() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.multikey
}

// Stats returns index statistics
func (idx *Index) Stats() map[string]interface{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	distinct := 0
	for i := range idx.entries {
		if i == 0 || idx.compare(idx.entries[i-1].key, idx.entries[i].key) != 0 {
			distinct++
		}
	}

	return map[string]interface{}{
		"name":          idx.name,
		"field_paths":   idx.spec.Fields(),
		"is_compound":   len(idx.spec) > 1,
		"unique":        idx.isUnique,
		"multikey":      idx.multikey,
		"size":          len(idx.entries),
		"distinct_keys": distinct,
		"lookups":       idx.lookups,
	}
}
