package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func sampleIndex() *Index {
	return &Index{Records: []Record{
		{Offset: 0, PacketSize: 100, ContentSize: 100, HasTimestamps: true, TimestampBegin: 10, TimestampEnd: 20},
		{Offset: 100, PacketSize: 100, ContentSize: 100, HasTimestamps: true, TimestampBegin: 20, TimestampEnd: 30},
	}}
}

func TestMarshalRoundTrip(t *testing.T) {
	ix := sampleIndex()
	raw, err := Marshal(ix)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Records) != len(ix.Records) {
		t.Fatalf("record count mismatch: got %d want %d", len(got.Records), len(ix.Records))
	}
	if got.Records[1].TimestampBegin != 20 || got.Records[1].Offset != 100 {
		t.Fatalf("round trip mismatch: %+v", got.Records[1])
	}
}

func TestSeekTargetFindsCoveringRecord(t *testing.T) {
	ix := sampleIndex()
	r, ok := ix.SeekTarget(25)
	if !ok || r.Offset != 100 {
		t.Fatalf("expected record at offset 100, got %+v ok=%v", r, ok)
	}
}

func TestSeekTargetPastEndMisses(t *testing.T) {
	ix := sampleIndex()
	if _, ok := ix.SeekTarget(1000); ok {
		t.Fatal("expected miss past last record")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := OpenCache("")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ix := sampleIndex()
	if err := c.Store("/trace/a.bin", 200, 12345, ix); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Lookup("/trace/a.bin", 200, 12345)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("unexpected record count %d", len(got.Records))
	}

	if _, ok, err := c.Lookup("/trace/a.bin", 201, 12345); err != nil || ok {
		t.Fatalf("expected miss on size change, got ok=%v err=%v", ok, err)
	}
}

func TestCorrectEventAfterPacket(t *testing.T) {
	q := Quirks{EventAfterPacket: true}
	recs := []Record{
		{TimestampBegin: 100, TimestampEnd: 200},
		{TimestampBegin: 250, TimestampEnd: 180},
	}
	CorrectEventAfterPacket(recs, q, 300)
	if recs[0].TimestampEnd != 250 {
		t.Fatalf("expected packet 1 end widened to next begin 250, got %d", recs[0].TimestampEnd)
	}
	if recs[1].TimestampEnd != 300 {
		t.Fatalf("expected last packet end set to decoded last-event ts 300, got %d", recs[1].TimestampEnd)
	}
}

func TestCorrectEventBeforePacket(t *testing.T) {
	q := Quirks{EventBeforePacket: true}
	recs := []Record{
		{TimestampBegin: 0, TimestampEnd: 100},
		{TimestampBegin: 120, TimestampEnd: 200},
	}
	CorrectEventBeforePacket(recs, q, []int64{0, 90})
	if recs[1].TimestampBegin != 90 {
		t.Fatalf("expected packet 2 begin replaced with first-event ts 90, got %d", recs[1].TimestampBegin)
	}
	if recs[0].TimestampEnd != 90 {
		t.Fatalf("expected packet 1 end widened to 90, got %d", recs[0].TimestampEnd)
	}
}

func TestCorrectCrashTruncatedEnd(t *testing.T) {
	q := Quirks{LTTngCrash: true}
	recs := []Record{
		{TimestampBegin: 10, TimestampEnd: 0},
		{TimestampBegin: 50, TimestampEnd: 0},
	}
	CorrectCrashTruncatedEnd(recs, q, 999)
	if recs[0].TimestampEnd != 50 {
		t.Fatalf("expected packet 1 end pulled from packet 2 begin 50, got %d", recs[0].TimestampEnd)
	}
	if recs[1].TimestampEnd != 999 {
		t.Fatalf("expected last packet end set to decoded last-event ts 999, got %d", recs[1].TimestampEnd)
	}
}

func TestCorrectCrashTruncatedEndLeavesZeroBeginAlone(t *testing.T) {
	q := Quirks{LTTngCrash: true}
	recs := []Record{{TimestampBegin: 0, TimestampEnd: 0}}
	CorrectCrashTruncatedEnd(recs, q, 999)
	if recs[0].TimestampEnd != 0 {
		t.Fatalf("a packet with no declared begin either must be left alone, got end %d", recs[0].TimestampEnd)
	}
}

func TestBuildGroupScansOnMissAndCachesAfter(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		p := filepath.Join(dir, string(rune('a'+i))+".bin")
		if err := os.WriteFile(p, []byte("trace data"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths[i] = p
	}

	c, err := OpenCache("")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var calls int
	scan := func(path string) (*Index, error) {
		calls++
		return sampleIndex(), nil
	}

	ixs, err := BuildGroup(context.Background(), paths, c, scan)
	if err != nil {
		t.Fatal(err)
	}
	if len(ixs) != 3 || calls != 3 {
		t.Fatalf("expected 3 scans on cold cache, got %d results %d calls", len(ixs), calls)
	}

	calls = 0
	if _, err := BuildGroup(context.Background(), paths, c, scan); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("expected warm cache to avoid rescanning, got %d calls", calls)
	}
}
