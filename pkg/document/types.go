package document

import (
	"math"
	"reflect"
	"time"
)

// Type represents the data type of a value
type Type byte

const (
	TypeFloat64   Type = 0x01
	TypeString    Type = 0x02
	TypeDocument  Type = 0x03
	TypeArray     Type = 0x04
	TypeBinary    Type = 0x05
	TypeObjectID  Type = 0x07
	TypeBoolean   Type = 0x08
	TypeNull      Type = 0x0A
	TypeTimestamp Type = 0x11
	TypeInt64     Type = 0x12
)

// String returns the string representation of the type
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeObjectID:
		return "objectid"
	case TypeArray:
		return "array"
	case TypeDocument:
		return "document"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value represents a typed value in a document
type Value struct {
	Type Type
	Data interface{}
}

// NewValue normalizes data and wraps it in a typed value
func NewValue(data interface{}) *Value {
	data = Normalize(data)
	return &Value{Type: TypeOf(data), Data: data}
}

// TypeOf reports the type of an already normalized value
func TypeOf(data interface{}) Type {
	switch data.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case int64:
		return TypeInt64
	case float64:
		return TypeFloat64
	case string:
		return TypeString
	case []byte:
		return TypeBinary
	case ObjectID:
		return TypeObjectID
	case time.Time:
		return TypeTimestamp
	case []interface{}:
		return TypeArray
	case map[string]interface{}, *Document:
		return TypeDocument
	default:
		return TypeNull
	}
}

// Normalize converts a Go value into the canonical representation stored in
// documents. Integers become int64, floats become float64, slices become
// []interface{} and maps become map[string]interface{}. Containers are
// rebuilt, so the result never aliases the caller's maps or slices. Nested
// *Document values below the top level are flattened into maps. Values of
// unsupported types become nil.
func Normalize(data interface{}) interface{} {
	return normalize(data, true)
}

func normalize(data interface{}, top bool) interface{} {
	switch v := data.(type) {
	case nil:
		return nil
	case bool, string, int64, float64, ObjectID, time.Time:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uintToValue(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return uintToValue(v)
	case float32:
		return float64(v)
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalize(item, false)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = normalize(item, false)
		}
		return out
	case *Document:
		if v == nil {
			return nil
		}
		if top {
			return v.Clone()
		}
		return v.ToMap()
	case Document:
		if top {
			return v.Clone()
		}
		return v.ToMap()
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i).Interface(), false)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface(), false)
		}
		return out
	}
	return nil
}

func uintToValue(v uint64) interface{} {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}
