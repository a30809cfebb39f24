package value

import "testing"

func TestEqualityByStructure(t *testing.T) {
	a := NewArray(NewInt(1), NewUint(2), NewString("x"))
	b := NewArray(NewInt(1), NewUint(2), NewString("x"))
	if !a.Equal(b) {
		t.Fatal("expected structurally equal arrays to be Equal")
	}
	c := NewArray(NewInt(1), NewUint(3), NewString("x"))
	if a.Equal(c) {
		t.Fatal("expected different arrays to not be Equal")
	}
}

func TestMapOrderIrrelevantForEquality(t *testing.T) {
	m1 := NewMap()
	_ = m1.Set("a", NewInt(1))
	_ = m1.Set("b", NewInt(2))

	m2 := NewMap()
	_ = m2.Set("b", NewInt(2))
	_ = m2.Set("a", NewInt(1))

	if !m1.Equal(m2) {
		t.Fatal("map equality must ignore insertion order")
	}
}

func TestFreezeRejectsMutation(t *testing.T) {
	m := NewMap()
	_ = m.Set("a", NewInt(1))
	inner := NewArray(NewInt(1))
	_ = m.Set("arr", inner)
	m.Freeze()

	if err := m.Set("b", NewInt(2)); err != ErrFrozen {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	// freeze is transitive: the array reachable through the map must
	// also reject mutation.
	if arr, ok := AsArray(inner); !ok || arr.Append(NewInt(2)) != ErrFrozen {
		t.Fatal("expected transitive freeze on reachable array")
	}
}

func TestRefCounting(t *testing.T) {
	v := NewInt(5)
	if v.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", v.RefCount())
	}
	v.Ref()
	if v.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", v.RefCount())
	}
	v.Unref()
	if v.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", v.RefCount())
	}
}

func TestArrayUnrefCascades(t *testing.T) {
	elem := NewInt(1)
	arr := NewArray(elem) // arr holds its own ref on elem (refcount now 2)
	if elem.RefCount() != 2 {
		t.Fatalf("expected elem refcount 2, got %d", elem.RefCount())
	}
	arr.Unref() // drops arr to 0, cascades Unref into elem
	if elem.RefCount() != 1 {
		t.Fatalf("expected elem refcount 1 after array teardown, got %d", elem.RefCount())
	}
}

func TestCloneIsDeepAndUnfrozen(t *testing.T) {
	m := NewMap()
	_ = m.Set("a", NewArray(NewInt(1)))
	m.Freeze()

	clone, ok := AsMap(m.Clone())
	if !ok {
		t.Fatal("clone should be a map")
	}
	if clone.IsFrozen() {
		t.Fatal("clone must not inherit frozen state")
	}
	if err := clone.Set("b", NewInt(2)); err != nil {
		t.Fatalf("clone should be mutable: %v", err)
	}
}
