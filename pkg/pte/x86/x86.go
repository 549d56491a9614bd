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

// Package x86 implements the 64-bit x86 page table entry format. The
// same layout serves every level from PML4 down to PT.
package x86

import (
	"fmt"

	"ptentry.dev/ptentry/pkg/memaddr"
	"ptentry.dev/ptentry/pkg/pte"
)

// PTEFlags are the hardware bits of an entry: everything outside the
// address field, including the execute-disable bit at the top.
type PTEFlags uint64

const (
	// FlagPresent marks the entry valid. A present x86 page is always
	// readable; there is no separate read bit.
	FlagPresent PTEFlags = 1 << 0

	// FlagWritable marks the page writable.
	FlagWritable PTEFlags = 1 << 1

	// FlagUser marks the page accessible from user mode.
	FlagUser PTEFlags = 1 << 2

	// FlagWriteThrough selects write-through caching.
	FlagWriteThrough PTEFlags = 1 << 3

	// FlagCacheDisable disables caching for the page.
	FlagCacheDisable PTEFlags = 1 << 4

	// FlagAccessed indicates the page has been read, written or fetched
	// from since the last time the bit was cleared.
	FlagAccessed PTEFlags = 1 << 5

	// FlagDirty indicates the page has been written since the last time
	// the bit was cleared.
	FlagDirty PTEFlags = 1 << 6

	// FlagSuper (PS) marks a PDPTE or PDE as a terminal huge mapping
	// rather than a pointer to the next level.
	FlagSuper PTEFlags = 1 << 7

	// FlagGlobal designates a global mapping.
	FlagGlobal PTEFlags = 1 << 8

	// FlagCOW is one of the ignored bits 9..11, repurposed to carry the
	// copy-on-write marker when that capability is compiled in.
	FlagCOW PTEFlags = 1 << 9

	// FlagNoExec (XD) forbids instruction fetches from the page.
	FlagNoExec PTEFlags = 1 << 63
)

// physAddrMask covers the address field, bits 12..51. The address is
// stored unshifted.
const physAddrMask uint64 = 0x000ffffffffff000

// Entry is one 64-bit x86 page table entry.
type Entry uint64

var _ pte.PTE = (*Entry)(nil)

// NewPage returns a leaf entry mapping addr with the given permissions.
// The accessed and dirty bits are set unconditionally so that the first
// access does not fault. flags must grant at least one of Read or
// Execute.
func NewPage(addr memaddr.PhysAddr, flags pte.MappingFlags, huge bool) Entry {
	pte.CheckLeafFlags(flags)
	f := encodeFlags(flags) | FlagAccessed | FlagDirty
	if huge {
		f |= FlagSuper
	}
	return Entry(uint64(f) | packAddr(addr))
}

// NewTable returns an entry pointing to a next-level table at addr.
// Intermediate entries are left permissive; the terminal entry decides
// the effective permissions.
func NewTable(addr memaddr.PhysAddr) Entry {
	return Entry(uint64(FlagPresent|FlagWritable|FlagUser) | packAddr(addr))
}

func packAddr(addr memaddr.PhysAddr) uint64 {
	return uint64(addr) & physAddrMask
}

// Address returns the physical address mapped by this entry.
func (e Entry) Address() memaddr.PhysAddr {
	return memaddr.PhysAddr(uint64(e) & physAddrMask)
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
	f := encodeFlags(flags) | FlagAccessed | FlagDirty
	if huge {
		f |= FlagSuper
	}
	e.SetArchFlags(f)
}

// ArchFlags returns the hardware flag bits of this entry.
func (e Entry) ArchFlags() PTEFlags {
	return PTEFlags(uint64(e) &^ physAddrMask)
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

// Present returns true iff the present bit is set.
func (e Entry) Present() bool {
	return e.ArchFlags()&FlagPresent != 0
}

// Dirty returns true iff the dirty bit is set.
func (e Entry) Dirty() bool {
	return e.ArchFlags()&FlagDirty != 0
}

// SetDirty sets or clears the dirty bit.
func (e *Entry) SetDirty(dirty bool) {
	if dirty {
		*e |= Entry(FlagDirty)
	} else {
		*e &^= Entry(FlagDirty)
	}
}

// Accessed returns true iff the accessed bit is set.
func (e Entry) Accessed() bool {
	return e.ArchFlags()&FlagAccessed != 0
}

// SetAccessed sets or clears the accessed bit.
func (e *Entry) SetAccessed(accessed bool) {
	if accessed {
		*e |= Entry(FlagAccessed)
	} else {
		*e &^= Entry(FlagAccessed)
	}
}

// Huge returns true iff the PS bit marks this entry as a terminal huge
// mapping.
func (e Entry) Huge() bool {
	return e.ArchFlags()&FlagSuper != 0
}

// Clear resets the entry to the all-zero unused state.
func (e *Entry) Clear() {
	*e = 0
}

// String implements fmt.Stringer.String, exposing the raw value, the
// decoded address and the decoded generic flags.
func (e Entry) String() string {
	return fmt.Sprintf("x86.Entry(%#x: addr=%s flags=%s)", uint64(e), e.Address(), e.Flags())
}

// decodeFlags translates hardware flags to the generic set. An entry
// without the present bit has no meaningful permissions, whatever its
// other bits.
func decodeFlags(f PTEFlags) pte.MappingFlags {
	var ret pte.MappingFlags
	if f&FlagPresent == 0 {
		return ret
	}
	ret = pte.Read
	if f&FlagWritable != 0 {
		ret |= pte.Write
	}
	if f&FlagNoExec == 0 {
		ret |= pte.Execute
	}
	if f&FlagUser != 0 {
		ret |= pte.User
	}
	if f&FlagCacheDisable != 0 {
		ret |= pte.Uncached
	}
	if pte.COWEnabled && f&FlagCOW != 0 {
		ret |= pte.CopyOnWrite
	}
	return ret
}

// encodeFlags translates the generic set to hardware flags. The empty
// set maps to the all-zero encoding; any other set implies present.
// Execute is inverted into the XD bit, and Device collapses onto
// cache-disable since x86 has no device memory type in the entry
// itself.
func encodeFlags(f pte.MappingFlags) PTEFlags {
	if f == 0 {
		return 0
	}
	ret := FlagPresent | FlagNoExec
	if f.Has(pte.Write) {
		ret |= FlagWritable
	}
	if f.Has(pte.Execute) {
		ret &^= FlagNoExec
	}
	if f.Has(pte.User) {
		ret |= FlagUser
	}
	if f.HasAny(pte.Device | pte.Uncached) {
		ret |= FlagCacheDisable
	}
	if pte.COWEnabled && f.Has(pte.CopyOnWrite) {
		ret |= FlagCOW
	}
	return ret
}
