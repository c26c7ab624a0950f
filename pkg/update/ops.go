package update

import (
	"fmt"

	"github.com/mnohosten/querybook/pkg/document"
)

// Set assigns Value to Field, creating intermediate documents
type Set struct {
	Field string
	Value interface{}
}

func (o Set) Apply(doc *document.Document) error {
	return setPath(doc, o.Field, o.Value)
}

func (o Set) Fields() []string { return []string{o.Field} }
func (o Set) String() string   { return fmt.Sprintf("$set %s = %#v", o.Field, o.Value) }

// Unset removes Field. Missing fields are ignored.
type Unset struct {
	Field string
}

func (o Unset) Apply(doc *document.Document) error {
	doc.DeletePath(o.Field)
	return nil
}

func (o Unset) Fields() []string { return []string{o.Field} }
func (o Unset) String() string   { return "$unset " + o.Field }

// Inc adds By to a numeric field. An absent field is set to By.
type Inc struct {
	Field string
	By    interface{}
}

func (o Inc) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists {
		return setPath(doc, o.Field, o.By)
	}
	result, err := arith(current, o.By, OpInc)
	if err != nil {
		return fmt.Errorf("field %s: %w", o.Field, err)
	}
	return setPath(doc, o.Field, result)
}

func (o Inc) Fields() []string { return []string{o.Field} }
func (o Inc) String() string   { return fmt.Sprintf("$inc %s by %v", o.Field, o.By) }

// Mul multiplies a numeric field by By. An absent field is set to zero.
type Mul struct {
	Field string
	By    interface{}
}

func (o Mul) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists {
		if _, isInt := document.Normalize(o.By).(int64); isInt {
			return setPath(doc, o.Field, int64(0))
		}
		return setPath(doc, o.Field, float64(0))
	}
	result, err := arith(current, o.By, OpMul)
	if err != nil {
		return fmt.Errorf("field %s: %w", o.Field, err)
	}
	return setPath(doc, o.Field, result)
}

func (o Mul) Fields() []string { return []string{o.Field} }
func (o Mul) String() string   { return fmt.Sprintf("$mul %s by %v", o.Field, o.By) }

// arith keeps integer arithmetic exact and falls back to float64 as soon as
// either operand is a float
func arith(current, operand interface{}, op Operator) (interface{}, error) {
	if !document.IsNumber(current) {
		return nil, fmt.Errorf("%w: cannot apply %s to %s value", ErrTypeMismatch, op, document.TypeOf(current))
	}
	operand = document.Normalize(operand)
	ci, cInt := current.(int64)
	oi, oInt := operand.(int64)
	if cInt && oInt {
		if op == OpInc {
			return ci + oi, nil
		}
		return ci * oi, nil
	}
	cf, _ := document.ToFloat64(current)
	of, _ := document.ToFloat64(operand)
	if op == OpInc {
		return cf + of, nil
	}
	return cf * of, nil
}

// Min replaces the field when Value orders before it
type Min struct {
	Field string
	Value interface{}
}

func (o Min) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists || document.Compare(o.Value, current) < 0 {
		return setPath(doc, o.Field, o.Value)
	}
	return nil
}

func (o Min) Fields() []string { return []string{o.Field} }
func (o Min) String() string   { return fmt.Sprintf("$min %s %#v", o.Field, o.Value) }

// Max replaces the field when Value orders after it
type Max struct {
	Field string
	Value interface{}
}

func (o Max) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists || document.Compare(o.Value, current) > 0 {
		return setPath(doc, o.Field, o.Value)
	}
	return nil
}

func (o Max) Fields() []string { return []string{o.Field} }
func (o Max) String() string   { return fmt.Sprintf("$max %s %#v", o.Field, o.Value) }

// Push appends Values to an array field, creating it when absent
type Push struct {
	Field  string
	Values []interface{}
}

func (o Push) Apply(doc *document.Document) error {
	arr, err := arrayField(doc, o.Field, OpPush)
	if err != nil {
		return err
	}
	arr = append(arr, o.Values...)
	return setPath(doc, o.Field, arr)
}

func (o Push) Fields() []string { return []string{o.Field} }
func (o Push) String() string   { return fmt.Sprintf("$push %s %#v", o.Field, o.Values) }

// AddToSet appends the Values not already present in the array field
type AddToSet struct {
	Field  string
	Values []interface{}
}

func (o AddToSet) Apply(doc *document.Document) error {
	arr, err := arrayField(doc, o.Field, OpAddToSet)
	if err != nil {
		return err
	}
	for _, v := range o.Values {
		if !contains(arr, v) {
			arr = append(arr, v)
		}
	}
	return setPath(doc, o.Field, arr)
}

func (o AddToSet) Fields() []string { return []string{o.Field} }
func (o AddToSet) String() string   { return fmt.Sprintf("$addToSet %s %#v", o.Field, o.Values) }

// Pull removes every array element equal to Value
type Pull struct {
	Field string
	Value interface{}
}

func (o Pull) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists {
		return nil
	}
	arr, ok := current.([]interface{})
	if !ok {
		return fmt.Errorf("%w: cannot apply $pull to non-array field %s", ErrTypeMismatch, o.Field)
	}
	kept := make([]interface{}, 0, len(arr))
	for _, elem := range arr {
		if !document.Equal(elem, o.Value) {
			kept = append(kept, elem)
		}
	}
	return setPath(doc, o.Field, kept)
}

func (o Pull) Fields() []string { return []string{o.Field} }
func (o Pull) String() string   { return fmt.Sprintf("$pull %s %#v", o.Field, o.Value) }

// Pop removes the first or last element of an array field
type Pop struct {
	Field string
	First bool
}

func (o Pop) Apply(doc *document.Document) error {
	current, exists := doc.GetPath(o.Field)
	if !exists {
		return nil
	}
	arr, ok := current.([]interface{})
	if !ok {
		return fmt.Errorf("%w: cannot apply $pop to non-array field %s", ErrTypeMismatch, o.Field)
	}
	if len(arr) == 0 {
		return nil
	}
	if o.First {
		return setPath(doc, o.Field, arr[1:])
	}
	return setPath(doc, o.Field, arr[:len(arr)-1])
}

func (o Pop) Fields() []string { return []string{o.Field} }
func (o Pop) String() string   { return fmt.Sprintf("$pop %s first=%t", o.Field, o.First) }

// Rename moves the value of From to To. A missing source is a no-op.
type Rename struct {
	From string
	To   string
}

func (o Rename) Apply(doc *document.Document) error {
	v, exists := doc.GetPath(o.From)
	if !exists {
		return nil
	}
	doc.DeletePath(o.From)
	return setPath(doc, o.To, v)
}

func (o Rename) Fields() []string { return []string{o.From, o.To} }
func (o Rename) String() string   { return fmt.Sprintf("$rename %s -> %s", o.From, o.To) }

func arrayField(doc *document.Document, field string, op Operator) ([]interface{}, error) {
	current, exists := doc.GetPath(field)
	if !exists || current == nil {
		return nil, nil
	}
	arr, ok := current.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: cannot apply %s to non-array field %s", ErrTypeMismatch, op, field)
	}
	return append([]interface{}(nil), arr...), nil
}

func contains(arr []interface{}, v interface{}) bool {
	for _, elem := range arr {
		if document.Equal(elem, v) {
			return true
		}
	}
	return false
}

func setPath(doc *document.Document, field string, value interface{}) error {
	if err := doc.SetPath(field, value); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return nil
}
