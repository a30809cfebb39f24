package schema

import (
	"testing"

	"github.com/tracegraph/ctf/value"
)

func withEnv(entries map[string]value.Value) *TraceClass {
	tc := New()
	tc.Environment = value.NewMap()
	for k, v := range entries {
		_ = tc.Environment.Set(k, v)
		v.Unref()
	}
	return tc
}

func TestDetectQuirksMissingTracerNameDisablesEverything(t *testing.T) {
	tc := withEnv(map[string]value.Value{"tracer_major": value.NewInt(1)})
	q := DetectQuirks(tc)
	if q.EventAfterPacket || q.EventBeforePacket || q.LTTngCrash {
		t.Fatalf("expected no quirks without tracer_name, got %+v", q)
	}
}

func TestDetectQuirksLTTngUstOldVersionAffected(t *testing.T) {
	tc := withEnv(map[string]value.Value{
		"tracer_name":  value.NewString("lttng-ust"),
		"tracer_major": value.NewInt(2),
		"tracer_minor": value.NewInt(10),
	})
	q := DetectQuirks(tc)
	if !q.EventAfterPacket {
		t.Fatal("expected lttng-ust 2.10 to be affected by event-after-packet")
	}
	if !q.LTTngCrash {
		t.Fatal("expected every lttng-ust version to be affected by the crash quirk")
	}
	if q.EventBeforePacket {
		t.Fatal("lttng-ust is never affected by barectf's event-before-packet bug")
	}
}

func TestDetectQuirksLTTngUstFixedVersionUnaffected(t *testing.T) {
	tc := withEnv(map[string]value.Value{
		"tracer_name":  value.NewString("lttng-ust"),
		"tracer_major": value.NewInt(2),
		"tracer_minor": value.NewInt(11),
	})
	q := DetectQuirks(tc)
	if q.EventAfterPacket {
		t.Fatal("expected lttng-ust 2.11 to be fixed")
	}
}

func TestDetectQuirksBarectfPatchBoundary(t *testing.T) {
	affected := withEnv(map[string]value.Value{
		"tracer_name":  value.NewString("barectf"),
		"tracer_major": value.NewInt(2),
		"tracer_minor": value.NewInt(3),
		"tracer_patch": value.NewInt(0),
	})
	if !DetectQuirks(affected).EventBeforePacket {
		t.Fatal("expected barectf 2.3.0 to be affected by event-before-packet")
	}

	fixed := withEnv(map[string]value.Value{
		"tracer_name":  value.NewString("barectf"),
		"tracer_major": value.NewInt(2),
		"tracer_minor": value.NewInt(3),
		"tracer_patch": value.NewInt(1),
	})
	if DetectQuirks(fixed).EventBeforePacket {
		t.Fatal("expected barectf 2.3.1 to be fixed")
	}
}

func TestArenaFreezeRejectsFurtherAdds(t *testing.T) {
	a := NewArena()
	id, err := a.AddInteger(NoFieldClass, false, 32, Base10, LittleEndian, EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	a.Freeze()
	if _, err := a.AddInteger(id, false, 8, Base10, LittleEndian, EncodingUTF8); err == nil {
		t.Fatal("expected error adding to a frozen arena")
	}
}

func TestEnumLookupOverlappingRanges(t *testing.T) {
	a := NewArena()
	cont, _ := a.AddInteger(NoFieldClass, false, 8, Base10, LittleEndian, EncodingUTF8)
	enumID, err := a.AddEnum(NoFieldClass, cont, map[string][]IntRange{
		"low":  {{Low: 0, High: 10}},
		"mid":  {{Low: 5, High: 15}},
		"high": {{Low: 20, High: 30}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fc := a.Get(enumID)
	labels := fc.LookupEnumLabels(7)
	if len(labels) != 2 {
		t.Fatalf("expected 2 overlapping labels for value 7, got %v", labels)
	}
	if len(fc.LookupEnumLabels(25)) != 1 {
		t.Fatalf("expected exactly 1 label for value 25")
	}
	if len(fc.LookupEnumLabels(100)) != 0 {
		t.Fatalf("expected no labels for value 100")
	}
}

func TestStreamAndEventClassIDUniqueness(t *testing.T) {
	tc := New()
	sc, err := tc.AddStreamClass(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tc.AddStreamClass(1); err == nil {
		t.Fatal("expected error on duplicate stream class id")
	}
	if _, err := sc.AddEventClass(10); err != nil {
		t.Fatal(err)
	}
	if _, err := sc.AddEventClass(10); err == nil {
		t.Fatal("expected error on duplicate event class id")
	}
}

func TestAdditiveUpdateAfterObservation(t *testing.T) {
	tc := New()
	sc, _ := tc.AddStreamClass(1)
	tc.MarkObserved()

	// additive: a brand-new event class on an already-observed trace
	// class is still legal (spec §4.2.3 "live" metadata update).
	if _, err := sc.AddEventClass(1); err != nil {
		t.Fatalf("additive event class add should succeed post-observation: %v", err)
	}
}
