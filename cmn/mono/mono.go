// Package mono provides monotonic nanosecond timestamps for latency
// measurement, grounded on the teacher's cmn/mono. Unlike the teacher we
// avoid go:linkname into the runtime -- time.Now() already returns a
// monotonic reading on every supported platform, so a linkname trick
// buys nothing but a build-tag dependency.
package mono

import "time"

var epoch = time.Now()

// NanoTime returns a monotonically non-decreasing nanosecond count from
// an arbitrary, process-local origin. Only valid for computing deltas.
func NanoTime() int64 { return time.Since(epoch).Nanoseconds() }

// Since returns the elapsed time given a prior NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
