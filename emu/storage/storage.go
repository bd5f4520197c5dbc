/*
   Main-storage abstraction shared by every instruction processor in the
   complex.

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

// Package storage implements the word-addressed main-storage processor
// interface that every instruction processor reads and writes through.
// The core never sees bytes: every access trades 36-bit words.
package storage

import (
	"fmt"
	"sync"

	"github.com/rcornwell/ux2200/emu/word"
)

// stripes bounds the number of mutexes used to serialize per-word access
// without forcing every processor through a single global lock.
const stripes = 256

// MSP ("main-storage processor") is a simple word-addressable store.
// Reads and writes against a single address are linearizable per spec
// §5.C; block operations are not atomic as a whole (they're restartable
// by the architecture) but still addressed word by word, which is all
// this interface promises.
type MSP struct {
	words []word.Word
	locks [stripes]sync.Mutex
}

// New allocates a storage processor of size words.
func New(size uint32) *MSP {
	return &MSP{words: make([]word.Word, size)}
}

// Size reports the number of addressable words.
func (m *MSP) Size() uint32 {
	return uint32(len(m.words))
}

func (m *MSP) lockFor(offset uint32) *sync.Mutex {
	return &m.locks[offset%stripes]
}

// ErrAddressRange reports an absolute address outside the storage
// processor's configured size — an implementation error (§7), not an
// architectural interrupt: the translation pipeline is responsible for
// keeping offsets within a bank's limits before they ever reach storage.
type ErrAddressRange struct {
	Offset uint32
	Size   uint32
}

func (e ErrAddressRange) Error() string {
	return fmt.Sprintf("storage: absolute offset %#o outside of size %#o", e.Offset, e.Size)
}

// ReadAbsolute reads one word at the given UPI-relative absolute offset.
// UPI is accepted for interface symmetry with the external specification
// even though this implementation backs every UPI with the same array —
// multiple instruction processors genuinely share one main-storage
// processor.
func (m *MSP) ReadAbsolute(_ uint16, offset uint32) (word.Word, error) {
	if offset >= uint32(len(m.words)) {
		return 0, ErrAddressRange{Offset: offset, Size: uint32(len(m.words))}
	}
	lock := m.lockFor(offset)
	lock.Lock()
	defer lock.Unlock()
	return m.words[offset], nil
}

// WriteAbsolute writes one word.
func (m *MSP) WriteAbsolute(_ uint16, offset uint32, value word.Word) error {
	if offset >= uint32(len(m.words)) {
		return ErrAddressRange{Offset: offset, Size: uint32(len(m.words))}
	}
	lock := m.lockFor(offset)
	lock.Lock()
	defer lock.Unlock()
	m.words[offset] = value & word.Mask
	return nil
}

// ReadBlock reads n consecutive words starting at offset. Per spec §5,
// block operations need not be atomic as a whole — each word is read
// under its own stripe lock independently.
func (m *MSP) ReadBlock(upi uint16, offset uint32, n uint32) ([]word.Word, error) {
	out := make([]word.Word, n)
	for i := uint32(0); i < n; i++ {
		v, err := m.ReadAbsolute(upi, offset+i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// WriteBlock writes consecutive words starting at offset.
func (m *MSP) WriteBlock(upi uint16, offset uint32, values []word.Word) error {
	for i, v := range values {
		if err := m.WriteAbsolute(upi, offset+uint32(i), v); err != nil {
			return err
		}
	}
	return nil
}
