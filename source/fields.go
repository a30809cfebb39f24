package source

import "github.com/tracegraph/ctf/value"

func getString(m *value.MapValue, name string) (string, bool) {
	v, ok := m.Get(name)
	if !ok {
		return "", false
	}
	sv, ok := v.(*value.StringValue)
	if !ok {
		return "", false
	}
	return sv.String(), true
}

func getInt(m *value.MapValue, name string, def int64) int64 {
	v, ok := m.Get(name)
	if !ok {
		return def
	}
	switch vv := v.(type) {
	case *value.IntValue:
		return vv.Int()
	case *value.UintValue:
		return int64(vv.Uint())
	default:
		return def
	}
}

func getBool(m *value.MapValue, name string, def bool) bool {
	v, ok := m.Get(name)
	if !ok {
		return def
	}
	bv, ok := v.(*value.BoolValue)
	if !ok {
		return def
	}
	return bv.Bool()
}

func getStringArray(m *value.MapValue, name string) ([]string, bool) {
	v, ok := m.Get(name)
	if !ok {
		return nil, false
	}
	av, ok := value.AsArray(v)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, av.Len())
	for i := 0; i < av.Len(); i++ {
		sv, ok := av.At(i).(*value.StringValue)
		if !ok {
			return nil, false
		}
		out = append(out, sv.String())
	}
	return out, true
}
