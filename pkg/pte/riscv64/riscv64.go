// Copyright 2026 The ptentry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package riscv64 implements the Sv39/Sv48 page table entry format for
// RV64 systems.
package riscv64

import (
	"fmt"

	"ptentry.dev/ptentry/pkg/memaddr"
	"ptentry.dev/ptentry/pkg/pte"
)

// PTEFlags are the hardware bits in the low ten bits of an entry.
type PTEFlags uint64

const (
	// FlagV marks the entry valid.
	FlagV PTEFlags = 1 << iota

	// FlagR marks the page readable.
	FlagR

	// FlagW marks the page writable.
	FlagW

	// FlagX marks the page executable.
	FlagX

	// FlagU marks the page accessible to user mode.
	FlagU

	// FlagG designates a global mapping.
	FlagG

	// FlagA indicates the page has been read, written or fetched from
	// since the last time A was cleared.
	FlagA

	// FlagD indicates the page has been written since the last time D
	// was cleared.
	FlagD

	// FlagRSW1 and FlagRSW2 are reserved for supervisor software.
	// FlagRSW1 carries the copy-on-write marker when that capability is
	// compiled in.
	FlagRSW1
	FlagRSW2
)

const (
	// physAddrMask covers the PPN field, bits 10..54 of the entry. The
	// PPN is the physical address shifted right by physAddrShift,
	// reflecting the hardware's 4-byte-granular frame number encoding.
	physAddrMask  uint64 = (1 << 54) - (1 << 10)
	physAddrShift        = 2

	flagsMask uint64 = (1 << 10) - 1
)

// Entry is one Sv39/Sv48 page table entry.
type Entry uint64

var _ pte.PTE = (*Entry)(nil)

// NewPage returns a leaf entry mapping addr with the given permissions.
// The accessed and dirty bits are set unconditionally so that the first
// access does not fault. flags must grant at least one of Read or
// Execute.
func NewPage(addr memaddr.PhysAddr, flags pte.MappingFlags, huge bool) Entry {
	pte.CheckLeafFlags(flags)
	return Entry(uint64(encodeFlags(flags)|FlagA|FlagD) | packAddr(addr))
}

// NewTable returns an entry pointing to a next-level table at addr. It
// carries only the valid bit; permission bits on a non-leaf entry would
// make it a leaf.
func NewTable(addr memaddr.PhysAddr) Entry {
	return Entry(uint64(FlagV) | packAddr(addr))
}

func packAddr(addr memaddr.PhysAddr) uint64 {
	return (uint64(addr) >> physAddrShift) & physAddrMask
}

// Address returns the physical address mapped by this entry.
func (e Entry) Address() memaddr.PhysAddr {
	return memaddr.PhysAddr((uint64(e) & physAddrMask) << physAddrShift)
}

// SetAddress replaces the address field, leaving flag bits intact. Bits
// outside the field are silently truncated.
func (e *Entry) SetAddress(addr memaddr.PhysAddr) {
	*e = Entry(uint64(*e)&^physAddrMask | packAddr(addr))
}

// Flags translates the hardware bits to the generic flag set.
func (e Entry) Flags() pte.MappingFlags {
	return decodeFlags(e.ArchFlags())
}

// SetFlags rederives the hardware bits from the generic set, reasserting
// the accessed and dirty bits. flags must grant at least one of Read or
// Execute.
func (e *Entry) SetFlags(flags pte.MappingFlags, huge bool) {
	pte.CheckLeafFlags(flags)
	e.SetArchFlags(encodeFlags(flags) | FlagA | FlagD)
}

// ArchFlags returns the hardware flag bits of this entry.
func (e Entry) ArchFlags() PTEFlags {
	return PTEFlags(uint64(e) & flagsMask)
}

// SetArchFlags sets the hardware flag bits directly, bypassing generic
// flag translation and preserving the address field.
func (e *Entry) SetArchFlags(flags PTEFlags) {
	*e = Entry(uint64(*e)&physAddrMask | uint64(flags))
}

// Bits returns the raw entry value.
func (e Entry) Bits() uint64 {
	return uint64(e)
}

// Unused returns true iff the entry is all zero.
func (e Entry) Unused() bool {
	return e == 0
}

// Present returns true iff the valid bit is set.
func (e Entry) Present() bool {
	return e.ArchFlags()&FlagV != 0
}

// Dirty returns true iff the dirty bit is set.
func (e Entry) Dirty() bool {
	return e.ArchFlags()&FlagD != 0
}

// SetDirty sets or clears the dirty bit.
func (e *Entry) SetDirty(dirty bool) {
	if dirty {
		*e |= Entry(FlagD)
	} else {
		*e &^= Entry(FlagD)
	}
}

// Accessed returns true iff the accessed bit is set.
func (e Entry) Accessed() bool {
	return e.ArchFlags()&FlagA != 0
}

// SetAccessed sets or clears the accessed bit.
func (e *Entry) SetAccessed(accessed bool) {
	if accessed {
		*e |= Entry(FlagA)
	} else {
		*e &^= Entry(FlagA)
	}
}

// Huge returns true iff the entry terminates translation at this level.
// An entry is terminal iff it grants read or execute permission; table
// pointers carry neither.
func (e Entry) Huge() bool {
	return e.ArchFlags()&(FlagR|FlagX) != 0
}

// Clear resets the entry to the all-zero unused state.
func (e *Entry) Clear() {
	*e = 0
}

// String implements fmt.Stringer.String, exposing the raw value, the
// decoded address and the decoded generic flags.
func (e Entry) String() string {
	return fmt.Sprintf("riscv64.Entry(%#x: addr=%s flags=%s)", uint64(e), e.Address(), e.Flags())
}

// decodeFlags translates hardware flags to the generic set. An invalid
// entry has no meaningful permissions, whatever its other bits.
func decodeFlags(f PTEFlags) pte.MappingFlags {
	var ret pte.MappingFlags
	if f&FlagV == 0 {
		return ret
	}
	if f&FlagR != 0 {
		ret |= pte.Read
	}
	if f&FlagW != 0 {
		ret |= pte.Write
	}
	if f&FlagX != 0 {
		ret |= pte.Execute
	}
	if f&FlagU != 0 {
		ret |= pte.User
	}
	if pte.COWEnabled && f&FlagRSW1 != 0 {
		ret |= pte.CopyOnWrite
	}
	return ret
}

// encodeFlags translates the generic set to hardware flags. The empty
// set maps to the all-zero encoding; any other set implies valid.
// Device and Uncached have no Sv39/Sv48 representation and are dropped.
func encodeFlags(f pte.MappingFlags) PTEFlags {
	if f == 0 {
		return 0
	}
	ret := FlagV
	if f.Has(pte.Read) {
		ret |= FlagR
	}
	if f.Has(pte.Write) {
		ret |= FlagW
	}
	if f.Has(pte.Execute) {
		ret |= FlagX
	}
	if f.Has(pte.User) {
		ret |= FlagU
	}
	if pte.COWEnabled && f.Has(pte.CopyOnWrite) {
		ret |= FlagRSW1
	}
	return ret
}
