package index

import (
	"fmt"

	"github.com/mnohosten/querybook/pkg/document"
)

// CompositeKey holds the values of a document for each field of a key
// spec, in spec order. Absent fields hold nil.
type CompositeKey struct {
	Values []interface{}
}

// NewCompositeKey creates a key from values in key spec order
func NewCompositeKey(values ...interface{}) *CompositeKey {
	return &CompositeKey{Values: values}
}

// Compare orders keys field by field using the document total order. A
// key that is a strict prefix of another sorts first.
func (ck *CompositeKey) Compare(other *CompositeKey) int {
	for i := range min(len(ck.Values), len(other.Values)) {
		if c := document.Compare(ck.Values[i], other.Values[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ck.Values) < len(other.Values):
		return -1
	case len(ck.Values) > len(other.Values):
		return 1
	}
	return 0
}

// MatchesPrefix reports whether the leading values of ck equal prefix,
// e.g. an author lookup against an {author, published_year} index
func (ck *CompositeKey) MatchesPrefix(prefix *CompositeKey) bool {
	if len(prefix.Values) > len(ck.Values) {
		return false
	}
	for i, v := range prefix.Values {
		if !document.Equal(ck.Values[i], v) {
			return false
		}
	}
	return true
}

func (ck *CompositeKey) String() string {
	return fmt.Sprintf("%v", ck.Values)
}
