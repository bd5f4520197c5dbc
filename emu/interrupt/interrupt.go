/*
   Interrupt & trap machinery: pending-interrupt queue, priority,
   entry/exit, and the deferrable-interrupt filter.

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

// Package interrupt implements the structured-interrupt machinery of
// spec §4.F/§7: a pending queue ordered by priority with arrival-order
// tie breaking, the deferrable-interrupt filter, and the register
// save/restore performed on delivery.
//
// The pending queue holds at most a handful of entries at once, so it
// is kept as a plain slice scanned for the best (priority, sequence)
// pair on each Highest call rather than a linked structure — the same
// trade the teacher's emu/event device-event scheduler makes for small
// queues, ordered there by a countdown timer instead of a priority.
package interrupt

import (
	"github.com/rcornwell/ux2200/emu/register"
)

// Class enumerates interrupt classes in priority order: lower numeric
// value is higher priority, matching spec §4.F's ordering from
// Hardware-check (highest) down to Software-break (lowest).
type Class int

const (
	HardwareCheck Class = iota
	MachineCheck
	ReferenceViolation
	AddressingException
	ArithmeticException
	InvalidInstruction
	Breakpoint
	QuantumTimer
	Dayclock
	Signal
	UPIInitial
	UPINormal
	IO
	SoftwareBreak
	numClasses
)

func (c Class) String() string {
	names := [...]string{
		"HardwareCheck", "MachineCheck", "ReferenceViolation",
		"AddressingException", "ArithmeticException", "InvalidInstruction",
		"Breakpoint", "QuantumTimer", "Dayclock", "Signal", "UPIInitial",
		"UPINormal", "IO", "SoftwareBreak",
	}
	if int(c) < 0 || int(c) >= len(names) {
		return "Unknown"
	}
	return names[c]
}

// deferrable reports whether class c is held pending while
// DR.DeferrableInterruptEnabled is false. Hardware/machine checks,
// reference violations, addressing exceptions, arithmetic exceptions and
// invalid-instruction traps are architecturally non-maskable; the rest
// are deferrable per spec §4.F.
func (c Class) deferrable() bool {
	switch c {
	case HardwareCheck, MachineCheck, ReferenceViolation, AddressingException,
		ArithmeticException, InvalidInstruction:
		return false
	default:
		return true
	}
}

// SubReason enumerates the fine-grained reason within a class.
type SubReason int

const (
	// InvalidInstruction sub-reasons.
	InvalidOpcode SubReason = iota
	InvalidProcessorPrivilege
	// ArithmeticException sub-reasons.
	FixedPointOverflow
	DivideCheck
	CharacteristicOverflow
	CharacteristicUnderflow
	OperationTrap
)

// Interrupt is the structured value raised by a handler and delivered by
// the run loop, per spec §4.F: {class, sub-reason, SSF, ISW0, ISW1}.
type Interrupt struct {
	Class     Class
	SubReason SubReason
	SSF       uint32
	ISW0      uint32
	ISW1      uint32
	// FaultLevel/FaultBDI carry the faulting (L,BDI) for addressing
	// exceptions, so a handler can resume or report it (spec §4.D).
	FaultLevel uint8
	FaultBDI   uint16
}

func (i Interrupt) priority() int {
	return int(i.Class)
}

// pending is one queued interrupt plus its arrival sequence number, used
// to break priority ties in arrival order (spec §7: "ties broken by
// arrival order").
type pending struct {
	irq Interrupt
	seq uint64
}

// Queue holds one instruction processor's pending interrupts.
type Queue struct {
	items []pending
	next  uint64
}

// Post enqueues an interrupt. UPI signals and device-style interrupts
// post without the sender waiting (spec §5); Post never blocks.
func (q *Queue) Post(irq Interrupt) {
	q.items = append(q.items, pending{irq: irq, seq: q.next})
	q.next++
}

// Any reports whether any interrupt is pending.
func (q *Queue) Any() bool {
	return len(q.items) > 0
}

// Highest returns the highest-priority pending interrupt eligible for
// delivery given the deferrable-interrupt-enabled flag, removing it from
// the queue. ok is false if nothing is eligible.
func (q *Queue) Highest(deferrableEnabled bool) (Interrupt, bool) {
	best := -1
	for i, p := range q.items {
		if p.irq.Class.deferrable() && !deferrableEnabled {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		bp, ip := q.items[best], p
		if ip.irq.priority() < bp.irq.priority() ||
			(ip.irq.priority() == bp.irq.priority() && ip.seq < bp.seq) {
			best = i
		}
	}
	if best == -1 {
		return Interrupt{}, false
	}
	irq := q.items[best].irq
	q.items = append(q.items[:best], q.items[best+1:]...)
	return irq, true
}

// Frame is a saved interrupt-control-stack entry: the processor state
// captured on interrupt entry so a handler can resume the interrupted
// instruction (spec §4.F step 1).
type Frame struct {
	PAR register.ProgramAddress
	DR  register.Designator
	IKR register.IndicatorKey
}

// ControlStack is the interrupt-control-stack; entry pushes a frame,
// exit (IRET-equivalent) pops it.
type ControlStack struct {
	frames []Frame
}

func (s *ControlStack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

func (s *ControlStack) Pop() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, true
}

// Vector is the (L,BDI,offset) the run loop transfers control to for a
// given class, installed by the loader at boot (SPEC_FULL §5).
type Vector struct {
	Level  uint8
	BDI    uint16
	Offset uint32
}

// VectorTable maps each interrupt class to its entry point.
type VectorTable [numClasses]Vector

// Deliver performs the architected interrupt-entry sequence of spec
// §4.F: save PAR/DR/IKR, clear DR.DeferrableInterruptEnabled for
// non-deferrable classes, raise privilege to 0, and return the vector to
// transfer control to. The caller (run loop) is responsible for actually
// loading PAR from the returned vector.
func Deliver(f *register.File, stack *ControlStack, vectors VectorTable, irq Interrupt) Vector {
	stack.Push(Frame{PAR: f.PAR, DR: f.DR, IKR: f.IKR})

	if !irq.Class.deferrable() {
		f.DR.DeferrableInterruptEnabled = false
	}
	f.DR.ProcessorPrivilege = 0

	return vectors[irq.Class]
}

// Return performs the inverse of Deliver: pop the most recent frame and
// restore PAR/DR/IKR from it. ok is false if the stack was empty.
func Return(f *register.File, stack *ControlStack) bool {
	frame, ok := stack.Pop()
	if !ok {
		return false
	}
	f.PAR = frame.PAR
	f.DR = frame.DR
	f.IKR = frame.IKR
	return true
}
