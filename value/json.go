package value

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ToJSON renders a value tree as JSON; nothing else in this module
// calls it (cmd/ctfdump has no dump flag). Real values round-trip
// through float64 unchanged; arrays/maps recurse.
func ToJSON(v Value) ([]byte, error) {
	return jsonAPI.Marshal(toAny(v))
}

func toAny(v Value) any {
	switch t := v.(type) {
	case *NullValue:
		return nil
	case *BoolValue:
		return t.v
	case *IntValue:
		return t.v
	case *UintValue:
		return t.v
	case *RealValue:
		return t.v
	case *StringValue:
		return t.v
	case *ArrayValue:
		out := make([]any, len(t.v))
		for i, e := range t.v {
			out[i] = toAny(e)
		}
		return out
	case *MapValue:
		out := make(map[string]any, len(t.v))
		for _, k := range t.keys {
			out[k] = toAny(t.v[k])
		}
		return out
	default:
		return nil
	}
}
