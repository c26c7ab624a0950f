package document

import (
	"bytes"
	"sort"
	"strings"
	"time"
)

// Sort order of value kinds when values of different types are compared.
// Absent and null sort first, then numbers, strings, documents, arrays,
// binary data, ObjectIDs, booleans and timestamps.
const (
	rankNull = iota
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBinary
	rankObjectID
	rankBoolean
	rankTimestamp
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNull
	case int, int32, int64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case map[string]interface{}, *Document:
		return rankDocument
	case []interface{}:
		return rankArray
	case []byte:
		return rankBinary
	case ObjectID:
		return rankObjectID
	case bool:
		return rankBoolean
	case time.Time:
		return rankTimestamp
	default:
		return rankNull
	}
}

// Comparable reports whether a and b belong to the same kind, so that an
// ordering comparison ($gt, $lt, ...) between them is meaningful.
func Comparable(a, b interface{}) bool {
	if a == nil || b == nil {
		return false
	}
	return rank(a) == rank(b)
}

// Compare orders any two values. It returns -1 if a < b, 0 if they are
// equal and 1 if a > b. Values of different kinds are ordered by kind.
func Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return compareInts(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		if ai, ok := integer(a); ok {
			if bi, ok := integer(b); ok {
				return compareInts64(ai, bi)
			}
		}
		af, _ := ToFloat64(a)
		bf, _ := ToFloat64(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankDocument:
		return compareMaps(asMap(a), asMap(b))
	case rankArray:
		return compareArrays(a.([]interface{}), b.([]interface{}))
	case rankBinary:
		return bytes.Compare(a.([]byte), b.([]byte))
	case rankObjectID:
		ao, bo := a.(ObjectID), b.(ObjectID)
		return bytes.Compare(ao[:], bo[:])
	case rankBoolean:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		}
		return 1
	case rankTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return 0
}

// integer widens integral values so that ints beyond 2^53 keep their
// precision when compared.
func integer(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	}
	return 0, false
}

func compareInts64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether two values are equal. Numbers compare by value
// across int64 and float64.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if rank(a) != rank(b) {
		return false
	}
	return Compare(a, b) == 0
}

// Identical is Equal with numbers also required to share a type, so that
// int64(15) and 15.0 differ.
func Identical(a, b interface{}) bool {
	switch av := a.(type) {
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Identical(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}, *Document:
		if rank(b) != rankDocument {
			return false
		}
		am, bm := asMap(a), asMap(b)
		if len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			w, ok := bm[k]
			if !ok || !Identical(v, w) {
				return false
			}
		}
		return true
	}
	if rank(a) == rankNumber && TypeOf(Normalize(a)) != TypeOf(Normalize(b)) {
		return false
	}
	return Equal(a, b)
}

// ToFloat64 converts a numeric value to float64
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt64 converts an integral numeric value to int64. Floats are accepted
// only when they hold a whole number.
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if val != float64(int64(val)) {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is a numeric value
func IsNumber(v interface{}) bool {
	return rank(v) == rankNumber
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asMap(v interface{}) map[string]interface{} {
	if d, ok := v.(*Document); ok {
		return d.ToMap()
	}
	return v.(map[string]interface{})
}

func compareMaps(a, b map[string]interface{}) int {
	ak, bk := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return compareInts(len(ak), len(bk))
}

func compareArrays(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInts(len(a), len(b))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
