package main

import "testing"

func TestDemoTraceClassIsWellFormed(t *testing.T) {
	tc, clk, err := demoTraceClass()
	if err != nil {
		t.Fatal(err)
	}
	if tc.StreamClassCount() != 1 {
		t.Fatalf("got %d stream classes, want 1", tc.StreamClassCount())
	}
	sc := tc.StreamClassByIndex(0)
	if sc.DefaultClock != clk {
		t.Fatal("stream class default clock isn't the returned clock")
	}
	if sc.EventClassCount() != 1 {
		t.Fatalf("got %d event classes, want 1", sc.EventClassCount())
	}
	if ec := sc.EventClassByID(0); ec == nil {
		t.Fatal("missing event class 0")
	}
}
