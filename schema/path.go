package schema

// Scope identifies one of the six declared scopes field-class path
// references may resolve against, per spec §3.2's invariants:
//
//	trace packet header -> stream packet context -> stream event header
//	-> stream event common context -> event specific context -> event payload
type Scope int

const (
	ScopePacketHeader Scope = iota
	ScopePacketContext
	ScopeEventHeader
	ScopeEventCommonContext
	ScopeEventSpecContext
	ScopeEventPayload
)

// scopeOrder fixes the declared hierarchy; a path may only reference a
// scope at or before the scope the referencing field class itself
// lives in (spec §3.2).
var scopeOrder = [...]Scope{
	ScopePacketHeader, ScopePacketContext, ScopeEventHeader,
	ScopeEventCommonContext, ScopeEventSpecContext, ScopeEventPayload,
}

func (s Scope) Index() int {
	for i, sc := range scopeOrder {
		if sc == s {
			return i
		}
	}
	return -1
}

// Path is a length-field or variant-tag-field path: an optional
// explicit Scope root (with Explicit false the path resolves within
// the structure currently being decoded, walking up its own ancestors
// first) followed by member-name segments.
type Path struct {
	Scope    Scope
	Explicit bool // true if Scope names an outer scope rather than "current"
	Segments []string
}

func CurrentScopePath(segments ...string) Path {
	return Path{Segments: segments}
}

func ScopedPath(scope Scope, segments ...string) Path {
	return Path{Scope: scope, Explicit: true, Segments: segments}
}
