package index

// Quirks mirrors schema.Quirks without importing package schema (index
// has no business knowing about field classes); schema.DetectQuirks
// detects quirks from the trace class's environment, and the iterator
// package decodes whatever event clock snapshots a quirk needs before
// calling these.
type Quirks struct {
	EventAfterPacket  bool
	EventBeforePacket bool
	LTTngCrash        bool
}

// CorrectEventAfterPacket repairs recs for some LTTng tracer versions'
// "event-after-packet" bug (spec §4.2.5): every entry but the last has
// its end timestamp pulled from the following entry's begin; the last
// entry's end comes from lastEventTS, the clock snapshot of its own
// last event (decoded by the caller, since index has no field-class
// knowledge to decode with).
func CorrectEventAfterPacket(recs []Record, quirks Quirks, lastEventTS int64) {
	if !quirks.EventAfterPacket || len(recs) == 0 {
		return
	}
	for i := 0; i < len(recs)-1; i++ {
		recs[i].TimestampEnd = recs[i+1].TimestampBegin
		recs[i].HasTimestamps = true
	}
	last := len(recs) - 1
	recs[last].TimestampEnd = lastEventTS
	recs[last].HasTimestamps = true
}

// CorrectEventBeforePacket repairs recs for some barectf tracer
// versions' "event-before-packet" bug: starting at the second entry,
// each entry's begin becomes firstEventTS[i] (that entry's own first
// event's clock snapshot, decoded by the caller) and the previous
// entry's end widens to the same value. firstEventTS[0] is unused.
func CorrectEventBeforePacket(recs []Record, quirks Quirks, firstEventTS []int64) {
	if !quirks.EventBeforePacket || len(recs) < 2 {
		return
	}
	for i := 1; i < len(recs); i++ {
		recs[i].TimestampBegin = firstEventTS[i]
		recs[i].HasTimestamps = true
		recs[i-1].TimestampEnd = firstEventTS[i]
		recs[i-1].HasTimestamps = true
	}
}

// CorrectCrashTruncatedEnd repairs recs for an lttng-crash trace, whose
// last packets have their timestamp_end left at 0 because the tracer
// never got to close them: any entry whose declared end is 0 while its
// begin isn't gets its end recomputed exactly as event-after-packet
// does -- from the following entry's begin, or, for the last entry,
// lastEventTS (again the caller's decode).
func CorrectCrashTruncatedEnd(recs []Record, quirks Quirks, lastEventTS int64) {
	if !quirks.LTTngCrash || len(recs) == 0 {
		return
	}
	last := len(recs) - 1
	if recs[last].TimestampEnd == 0 && recs[last].TimestampBegin != 0 {
		recs[last].TimestampEnd = lastEventTS
	}
	for i := 0; i < last; i++ {
		if recs[i].TimestampEnd == 0 && recs[i].TimestampBegin != 0 {
			recs[i].TimestampEnd = recs[i+1].TimestampBegin
		}
	}
}
