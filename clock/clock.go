// Package clock implements the clock-class model of spec §3.2: a
// frequency, an origin offset expressed as (seconds, cycles), and the
// cycles->nanoseconds conversion with a 128-bit intermediate so a
// clock running near 2^64 cycles at a low frequency cannot silently
// wrap during conversion.
package clock

import (
	"math/bits"

	"github.com/google/uuid"

	"github.com/tracegraph/ctf/errs"
)

type Class struct {
	Frequency    uint64 // ticks/s, > 0
	OffsetSec    int64
	OffsetCycles uint64 // 0 <= OffsetCycles < Frequency
	Precision    uint64
	IsAbsolute   bool
	UUID         *uuid.UUID
	Name         string
	Description  string
}

func New(frequency uint64, offsetSec int64, offsetCycles uint64) (*Class, error) {
	if frequency == 0 {
		return nil, errs.New(errs.SchemaError, "clock class frequency must be > 0")
	}
	if offsetCycles >= frequency {
		return nil, errs.New(errs.SchemaError, "clock class offset cycles %d must be < frequency %d", offsetCycles, frequency)
	}
	return &Class{Frequency: frequency, OffsetSec: offsetSec, OffsetCycles: offsetCycles}, nil
}

const nsPerSec = 1_000_000_000

// CyclesToNS converts a raw cycle count to nanoseconds from this clock
// class's origin:
//
//	ns = offset_s*1e9 + ((cycles + offset_cycles) * 1e9) / frequency
//
// computed with a 128-bit intermediate product so that large cycle
// counts at low frequencies don't overflow before the division.
func (c *Class) CyclesToNS(cycles uint64) (int64, error) {
	sum, carry := bits.Add64(cycles, c.OffsetCycles, 0)
	hi, lo := bits.Mul64(sum, nsPerSec)
	// carry is 0 or 1; folding it in adds carry*2^64*1e9 to the 128-bit
	// product, i.e. carry*1e9 to the high word.
	hi += carry * nsPerSec
	if hi >= c.Frequency {
		return 0, errs.New(errs.DecodeError, "clock conversion overflow: cycles=%d freq=%d", cycles, c.Frequency)
	}
	q, _ := bits.Div64(hi, lo, c.Frequency)
	return c.OffsetSec*nsPerSec + int64(q), nil
}

// Comparable implements spec §4.5.2: two clock classes are comparable
// iff they share the same UUID, or both are flagged absolute, or they
// are the same object.
func Comparable(a, b *Class) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.IsAbsolute && b.IsAbsolute {
		return true
	}
	if a.UUID != nil && b.UUID != nil && *a.UUID == *b.UUID {
		return true
	}
	return false
}
