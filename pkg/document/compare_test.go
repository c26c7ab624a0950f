package document

import (
	"sort"
	"testing"
	"time"
)

func TestCompareNumbersAcrossTypes(t *testing.T) {
	if Compare(int64(10), 9.5) != 1 {
		t.Error("Expected 10 > 9.5")
	}
	if Compare(int64(3), float64(3)) != 0 {
		t.Error("Expected 3 == 3.0")
	}
	if !Equal(int64(15), 15.0) {
		t.Error("Expected numeric equality across int64 and float64")
	}
}

func TestCompareLargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	if Compare(big, big+1) != -1 || Compare(big+1, big) != 1 {
		t.Errorf("Expected %d < %d", big, big+1)
	}
	if Equal(big, big+1) {
		t.Errorf("%d and %d must not be equal", big, big+1)
	}
	if Compare(int(7), int64(7)) != 0 {
		t.Error("Expected int and int64 of the same value to be equal")
	}
}

func TestCompareTypeOrder(t *testing.T) {
	values := []interface{}{
		time.Unix(0, 0),
		true,
		"b",
		[]interface{}{int64(1)},
		map[string]interface{}{"a": int64(1)},
		int64(2),
		nil,
		"a",
	}
	sort.SliceStable(values, func(i, j int) bool { return Compare(values[i], values[j]) < 0 })

	if values[0] != nil {
		t.Errorf("Expected null first, got %v", values[0])
	}
	if values[1] != int64(2) {
		t.Errorf("Expected number second, got %v", values[1])
	}
	if values[2] != "a" || values[3] != "b" {
		t.Errorf("Expected strings next, got %v %v", values[2], values[3])
	}
	if _, ok := values[7].(time.Time); !ok {
		t.Errorf("Expected timestamp last, got %v", values[7])
	}
}

func TestComparable(t *testing.T) {
	if Comparable("1950", int64(1950)) {
		t.Error("String and number must not be comparable")
	}
	if !Comparable(int64(1), 2.5) {
		t.Error("Numbers must be comparable")
	}
	if Comparable(nil, nil) {
		t.Error("Null is never comparable")
	}
}

func TestEqualNested(t *testing.T) {
	a := map[string]interface{}{"x": []interface{}{int64(1), "y"}}
	b := map[string]interface{}{"x": []interface{}{1.0, "y"}}
	if !Equal(a, b) {
		t.Error("Expected nested values to be equal")
	}
	if Equal(a, map[string]interface{}{"x": []interface{}{int64(2), "y"}}) {
		t.Error("Expected nested values to differ")
	}
	if Equal(nil, false) {
		t.Error("null must not equal false")
	}
}

func TestToInt64(t *testing.T) {
	if v, ok := ToInt64(5.0); !ok || v != 5 {
		t.Errorf("Expected 5, got %v %v", v, ok)
	}
	if _, ok := ToInt64(5.5); ok {
		t.Error("Expected fractional float to be rejected")
	}
	if _, ok := ToInt64("5"); ok {
		t.Error("Expected string to be rejected")
	}
}
