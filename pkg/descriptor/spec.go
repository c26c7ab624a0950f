package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/mnohosten/querybook/pkg/aggregation"
	"github.com/mnohosten/querybook/pkg/document"
	"github.com/mnohosten/querybook/pkg/index"
	"github.com/mnohosten/querybook/pkg/query"
	"github.com/mnohosten/querybook/pkg/update"
)

// allowedKeys lists the mapping keys each operation accepts besides "op"
var allowedKeys = map[Kind][]string{
	KindFind:        {"filter", "projection", "sort", "skip", "limit", "explain"},
	KindUpdateOne:   {"filter", "update"},
	KindDeleteOne:   {"filter"},
	KindAggregate:   {"pipeline"},
	KindCreateIndex: {"keys"},
}

// FromSpec builds a descriptor from its mapping form, for example
//
//	{"op": "find", "filter": {"genre": "Fiction"}, "sort": {"price": -1}, "limit": 5}
//
// The mapping is copied, so later changes by the caller have no effect.
func FromSpec(spec map[string]interface{}) (*Descriptor, error) {
	var raw map[string]interface{}
	if err := deepcopy.Copy(&raw, spec); err != nil {
		return nil, fmt.Errorf("%w: copying spec: %w", ErrInvalidDescriptor, err)
	}

	op, ok := raw["op"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing operation name", ErrInvalidDescriptor)
	}
	kind, err := ParseKind(op)
	if err != nil {
		return nil, err
	}
	if err := checkKeys(kind, raw); err != nil {
		return nil, err
	}

	var d *Descriptor
	switch kind {
	case KindFind:
		d, err = findFromSpec(raw)
	case KindUpdateOne:
		d, err = updateFromSpec(raw)
	case KindDeleteOne:
		var filter query.Filter
		if filter, err = filterFromSpec(kind, raw); err == nil {
			d, err = NewDeleteOne(filter)
		}
	case KindAggregate:
		d, err = aggregateFromSpec(raw)
	case KindCreateIndex:
		var keys index.KeySpec
		if keys, err = index.ParseKeySpec(raw["keys"]); err != nil {
			return nil, invalid(kind, err)
		}
		d, err = NewCreateIndex(keys)
	}
	if err != nil {
		return nil, err
	}

	d.spec = raw
	return d, nil
}

func checkKeys(kind Kind, raw map[string]interface{}) error {
	allowed := make(map[string]bool, len(allowedKeys[kind])+1)
	allowed["op"] = true
	for _, k := range allowedKeys[kind] {
		allowed[k] = true
	}

	var unknown []string
	for k := range raw {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return invalid(kind, fmt.Errorf("unexpected keys %s", strings.Join(unknown, ", ")))
	}
	return nil
}

func filterFromSpec(kind Kind, raw map[string]interface{}) (query.Filter, error) {
	v, ok := raw["filter"]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, invalid(kind, fmt.Errorf("filter must be an object, got %T", v))
	}
	f, err := query.ParseFilter(m)
	if err != nil {
		return nil, invalid(kind, err)
	}
	return f, nil
}

func findFromSpec(raw map[string]interface{}) (*Descriptor, error) {
	filter, err := filterFromSpec(KindFind, raw)
	if err != nil {
		return nil, err
	}

	var opts []FindOption
	if v, ok := raw["projection"]; ok && v != nil {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, invalid(KindFind, fmt.Errorf("projection must be an object, got %T", v))
		}
		p, err := query.ParseProjection(m)
		if err != nil {
			return nil, invalid(KindFind, err)
		}
		opts = append(opts, WithProjection(p))
	}
	if v, ok := raw["sort"]; ok {
		s, err := query.ParseSort(v)
		if err != nil {
			return nil, invalid(KindFind, err)
		}
		opts = append(opts, WithSort(s))
	}
	if v, ok := raw["skip"]; ok {
		n, err := intOption("skip", v)
		if err != nil {
			return nil, invalid(KindFind, err)
		}
		opts = append(opts, WithSkip(n))
	}
	if v, ok := raw["limit"]; ok {
		n, err := intOption("limit", v)
		if err != nil {
			return nil, invalid(KindFind, err)
		}
		opts = append(opts, WithLimit(n))
	}
	if v, ok := raw["explain"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, invalid(KindFind, fmt.Errorf("explain must be a boolean, got %T", v))
		}
		if b {
			opts = append(opts, WithExplain())
		}
	}

	return NewFind(filter, opts...)
}

func intOption(name string, v interface{}) (int, error) {
	n, ok := document.ToInt64(document.Normalize(v))
	if !ok {
		return 0, fmt.Errorf("%s must be an integer, got %v", name, v)
	}
	return int(n), nil
}

func updateFromSpec(raw map[string]interface{}) (*Descriptor, error) {
	filter, err := filterFromSpec(KindUpdateOne, raw)
	if err != nil {
		return nil, err
	}
	if err := requireFilter(KindUpdateOne, filter); err != nil {
		return nil, err
	}

	m, ok := raw["update"].(map[string]interface{})
	if !ok {
		return nil, invalid(KindUpdateOne, fmt.Errorf("update must be an object"))
	}
	mutation, err := update.Parse(m)
	if err != nil {
		return nil, invalid(KindUpdateOne, err)
	}
	return NewUpdateOne(filter, mutation)
}

func aggregateFromSpec(raw map[string]interface{}) (*Descriptor, error) {
	list, ok := raw["pipeline"].([]interface{})
	if !ok {
		return nil, invalid(KindAggregate, fmt.Errorf("pipeline must be an array"))
	}

	stages := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		stage, ok := item.(map[string]interface{})
		if !ok {
			return nil, invalid(KindAggregate, fmt.Errorf("stage %d is not an object", i))
		}
		stages = append(stages, stage)
	}

	p, err := aggregation.NewPipeline(stages)
	if err != nil {
		return nil, invalid(KindAggregate, err)
	}
	return NewAggregate(p)
}

// Spec returns a copy of the mapping the descriptor was built from, or nil
// when it was built with the typed constructors
func (d *Descriptor) Spec() map[string]interface{} {
	if d.spec == nil {
		return nil
	}
	var out map[string]interface{}
	if err := deepcopy.Copy(&out, d.spec); err != nil {
		return nil
	}
	return out
}
