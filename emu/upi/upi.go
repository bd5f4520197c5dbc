/*
   Inter-processor UPI (Unit Processor Identifier) signalling.

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

// Package upi implements UPI signalling between the instruction
// processors of a complex (spec §4.G, §5): one processor posts a
// signal naming another processor's UPI without waiting for it to be
// taken, mirroring how the teacher's emu/core run loop and
// emu/sys_channel accept a master.Packet into a channel and return
// immediately rather than synchronizing with the consumer.
package upi

import "sync"

// Kind distinguishes an UPI-Initial (processor-reset-style) signal from
// an UPI-Normal (ordinary inter-processor interrupt) signal, matching
// the two UPI interrupt classes spec §4.F names.
type Kind int

const (
	Normal Kind = iota
	Initial
)

// Signal is the payload one processor posts to another's mailbox.
type Signal struct {
	From uint16
	Kind Kind
	Data uint32
}

// mailbox holds one processor's pending UPI signals. A plain
// mutex-guarded slice, not a buffered channel, so Send can never block
// regardless of how far behind the receiving processor has fallen.
type mailbox struct {
	mu      sync.Mutex
	pending []Signal
}

func (m *mailbox) post(s Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, s)
}

func (m *mailbox) drain() []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	out := m.pending
	m.pending = nil
	return out
}

// Complex routes UPI signals between every processor sharing it.
type Complex struct {
	mu    sync.RWMutex
	boxes map[uint16]*mailbox
}

// NewComplex returns an empty signalling complex.
func NewComplex() *Complex {
	return &Complex{boxes: make(map[uint16]*mailbox)}
}

// Register creates (or returns the existing) mailbox for upi, called
// once by each processor as it joins the complex.
func (c *Complex) Register(upi uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.boxes[upi]; !ok {
		c.boxes[upi] = &mailbox{}
	}
}

// Send posts s to the named processor's mailbox without waiting for it
// to be read. ok is false if upi is not a registered processor.
func (c *Complex) Send(upi uint16, s Signal) bool {
	c.mu.RLock()
	box, ok := c.boxes[upi]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	box.post(s)
	return true
}

// Drain removes and returns every signal posted to upi since the last
// Drain, in arrival order. The run loop calls this once per cycle to
// fold pending UPI signals into the interrupt machinery.
func (c *Complex) Drain(upi uint16) []Signal {
	c.mu.RLock()
	box, ok := c.boxes[upi]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return box.drain()
}
