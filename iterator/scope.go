package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// scopeTracker remembers, per field class Arena, which FieldClassID
// produced each member of every in-progress or completed struct value,
// so a later length or variant-tag path can recover not just the
// decoded value but its declared type (needed to tell an enum tag's
// labels from a plain integer's).
type scopeTracker struct {
	fieldOf map[*value.MapValue]map[string]schema.FieldClassID

	// current holds the stack of structs being decoded right now,
	// innermost last, for CurrentScopePath resolution (spec §3.2: walk
	// up the structure's own ancestors first).
	current []*value.MapValue

	// completed holds the fully-decoded root struct for each of the six
	// scopes, filled in as the packet state machine advances past them.
	completed [6]*value.MapValue
}

func newScopeTracker() *scopeTracker {
	return &scopeTracker{fieldOf: make(map[*value.MapValue]map[string]schema.FieldClassID)}
}

func (t *scopeTracker) pushStruct(m *value.MapValue) {
	t.fieldOf[m] = make(map[string]schema.FieldClassID)
	t.current = append(t.current, m)
}

func (t *scopeTracker) recordMember(parent *value.MapValue, name string, class schema.FieldClassID) {
	t.fieldOf[parent][name] = class
}

func (t *scopeTracker) popStruct() *value.MapValue {
	m := t.current[len(t.current)-1]
	t.current = t.current[:len(t.current)-1]
	return m
}

func (t *scopeTracker) completeScope(scope schema.Scope, m *value.MapValue) {
	t.completed[scope.Index()] = m
}

// resolved is what a length or tag path resolves to: the decoded
// value, and (if known) the field class that declared it.
type resolved struct {
	val   value.Value
	class schema.FieldClassID
}

func (t *scopeTracker) walk(root *value.MapValue, segments []string) (resolved, bool) {
	cur := root
	var class schema.FieldClassID = schema.NoFieldClass
	var curVal value.Value = root
	for i, seg := range segments {
		m, ok := value.AsMap(curVal)
		if !ok {
			return resolved{}, false
		}
		v, ok := m.Get(seg)
		if !ok {
			return resolved{}, false
		}
		if fo, ok := t.fieldOf[cur]; ok {
			if c, ok := fo[seg]; ok {
				class = c
			}
		}
		curVal = v
		if i < len(segments)-1 {
			next, ok := value.AsMap(v)
			if !ok {
				return resolved{}, false
			}
			cur = next
		}
	}
	return resolved{val: curVal, class: class}, true
}

func (t *scopeTracker) resolveCurrent(segments []string) (resolved, bool) {
	for i := len(t.current) - 1; i >= 0; i-- {
		if r, ok := t.walk(t.current[i], segments); ok {
			return r, true
		}
	}
	return resolved{}, false
}

// Resolve implements spec §3.2's path resolution: an explicit path
// names one of the six scopes and is looked up against that scope's
// already-completed root struct; a current-scope path walks the
// in-progress struct stack from innermost outward.
func (t *scopeTracker) Resolve(p schema.Path) (resolved, error) {
	if !p.Explicit {
		if r, ok := t.resolveCurrent(p.Segments); ok {
			return r, nil
		}
		return resolved{}, errs.New(errs.DecodeError, "path %v unresolved in current scope", p.Segments)
	}
	root := t.completed[p.Scope.Index()]
	if root == nil {
		return resolved{}, errs.New(errs.SchemaError, "path references scope %d not yet decoded", p.Scope)
	}
	r, ok := t.walk(root, p.Segments)
	if !ok {
		return resolved{}, errs.New(errs.DecodeError, "path %v not found in scope %d", p.Segments, p.Scope)
	}
	return r, nil
}

func asInt64(v value.Value) (int64, error) {
	switch vv := v.(type) {
	case *value.IntValue:
		return vv.Int(), nil
	case *value.UintValue:
		return int64(vv.Uint()), nil
	default:
		return 0, errs.New(errs.DecodeError, "expected an integer value, got %s", v.Kind())
	}
}

func asLength(v value.Value) (uint64, error) {
	switch vv := v.(type) {
	case *value.UintValue:
		return vv.Uint(), nil
	case *value.IntValue:
		if vv.Int() < 0 {
			return 0, errs.New(errs.DecodeError, "sequence length %d is negative", vv.Int())
		}
		return uint64(vv.Int()), nil
	default:
		return 0, errs.New(errs.DecodeError, "expected an integer length, got %s", v.Kind())
	}
}
