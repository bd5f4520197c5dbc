/*
   Shared process-wide day-clock and RMD uniqueness counter.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package dayclock implements the microsecond day-clock and the RMD
// uniqueness counter shared by every instruction processor in the
// complex (spec §4.G's RMD contract, §5, §8). A single *Clock is meant
// to be constructed once by the inventory manager and handed to every
// processor, mirroring how the teacher's emu/timer ticker is shared via
// one master channel rather than recreated per CPU.
package dayclock

import (
	"sync"
	"time"
)

// Clock holds the offset-adjusted day-clock and the (last-observed,
// counter) uniqueness pair that RMD consults. All fields are guarded by
// mu so distinct RMD results are guaranteed across processors within the
// same microsecond (spec §8).
type Clock struct {
	mu sync.Mutex

	offset int64 // Microseconds added to the host clock.

	lastMicros uint64
	uniqueness uint64

	now func() time.Time // Overridable for tests.
}

// New returns a day-clock with a zero offset, backed by the host clock.
func New() *Clock {
	return &Clock{now: time.Now}
}

// SetOffset adjusts the day-clock relative to the host clock, e.g. to
// align emulated time with a loaded module's expectations.
func (c *Clock) SetOffset(microseconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = microseconds
}

// Micros returns the current offset-adjusted microsecond count.
func (c *Clock) Micros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.microsLocked()
}

// microsMask keeps the day-clock within the 36-bit field the ReadUnique
// result's high word is built from (spec §4.G: 41-bit result = 36-bit
// clock shifted left 5, ORed with a 5-bit uniqueness counter).
const microsMask = (uint64(1) << 36) - 1

func (c *Clock) microsLocked() uint64 {
	t := c.now()
	return uint64(t.UnixMicro()+c.offset) & microsMask
}

// ReadUnique returns the day-clock reading shifted left 5 bits and ORed
// with a uniqueness counter, per spec §4.G's RMD contract: the counter
// increments when the same microsecond is observed consecutively
// (across any processor) and resets otherwise. The result is a 41-bit
// value guaranteed distinct across processors sampling within the same
// microsecond.
func (c *Clock) ReadUnique() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	micros := c.microsLocked()
	if micros == c.lastMicros {
		c.uniqueness++
	} else {
		c.uniqueness = 0
		c.lastMicros = micros
	}
	return (micros << 5) | (c.uniqueness & 0x1F)
}
