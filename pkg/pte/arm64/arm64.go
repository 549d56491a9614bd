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

// Package arm64 implements the VMSAv8-64 stage 1 translation descriptor
// format with 4 KiB granules.
//
// The encoding assumes MAIR_EL1 is programmed with index 0 as normal
// write-back memory, index 1 as Device-nGnRnE and index 2 as normal
// non-cacheable.
package arm64

import (
	"fmt"

	"ptentry.dev/ptentry/pkg/memaddr"
	"ptentry.dev/ptentry/pkg/pte"
)

// PTEFlags are the hardware bits of a descriptor: everything outside the
// address field.
type PTEFlags uint64

const (
	// FlagValid marks the descriptor valid.
	FlagValid PTEFlags = 1 << 0

	// FlagTable distinguishes table and page descriptors (bit set) from
	// block descriptors (bit clear).
	FlagTable PTEFlags = 1 << 1

	// FlagUser (AP[1]) marks the page accessible from EL0.
	FlagUser PTEFlags = 1 << 6

	// FlagReadOnly (AP[2]) forbids writes. Write permission is its
	// absence.
	FlagReadOnly PTEFlags = 1 << 7

	// FlagShared selects inner-shareable normal memory.
	FlagShared PTEFlags = 3 << 8

	// FlagAccessed (AF) indicates the page has been read, written or
	// fetched from since the last time the bit was cleared.
	FlagAccessed PTEFlags = 1 << 10

	// FlagNotGlobal (nG) restricts the mapping to the current ASID.
	FlagNotGlobal PTEFlags = 1 << 11

	// FlagDBM allows hardware dirty state management for the page.
	FlagDBM PTEFlags = 1 << 51

	// FlagPXN forbids instruction fetches at EL1.
	FlagPXN PTEFlags = 1 << 53

	// FlagXN forbids instruction fetches at EL0.
	FlagXN PTEFlags = 1 << 54

	// FlagDirty is a software bit (bit 55) tracking writes, since the
	// architecture has no standalone dirty bit.
	FlagDirty PTEFlags = 1 << 55

	// FlagCOW is a software bit (bit 56) carrying the copy-on-write
	// marker when that capability is compiled in.
	FlagCOW PTEFlags = 1 << 56
)

// Memory attribute indices into MAIR_EL1, stored in bits 2..4.
const (
	attrIndexMask PTEFlags = 7 << 2

	attrNormal   PTEFlags = 0 << 2
	attrDevice   PTEFlags = 1 << 2
	attrNormalNC PTEFlags = 2 << 2
)

// physAddrMask covers the output address field, bits 12..47. The
// address is stored unshifted.
const physAddrMask uint64 = 0x0000fffffffff000

// Entry is one VMSAv8-64 stage 1 descriptor.
type Entry uint64

var _ pte.PTE = (*Entry)(nil)

// NewPage returns a leaf descriptor mapping addr with the given
// permissions: a block descriptor when huge, a last-level page
// descriptor otherwise. The access flag and the software dirty bit are
// set unconditionally so that the first access does not fault. flags
// must grant at least one of Read or Execute.
func NewPage(addr memaddr.PhysAddr, flags pte.MappingFlags, huge bool) Entry {
	pte.CheckLeafFlags(flags)
	f := encodeFlags(flags) | FlagAccessed | FlagDirty
	if !huge {
		f |= FlagTable
	}
	return Entry(uint64(f) | packAddr(addr))
}

// NewTable returns a table descriptor pointing to a next-level table at
// addr.
func NewTable(addr memaddr.PhysAddr) Entry {
	return Entry(uint64(FlagValid|FlagTable) | packAddr(addr))
}

func packAddr(addr memaddr.PhysAddr) uint64 {
	return uint64(addr) & physAddrMask
}

// Address returns the physical address mapped by this descriptor.
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
// the access flag and the software dirty bit. flags must grant at least
// one of Read or Execute.
func (e *Entry) SetFlags(flags pte.MappingFlags, huge bool) {
	pte.CheckLeafFlags(flags)
	f := encodeFlags(flags) | FlagAccessed | FlagDirty
	if !huge {
		f |= FlagTable
	}
	e.SetArchFlags(f)
}

// ArchFlags returns the hardware flag bits of this descriptor.
func (e Entry) ArchFlags() PTEFlags {
	return PTEFlags(uint64(e) &^ physAddrMask)
}

// SetArchFlags sets the hardware flag bits directly, bypassing generic
// flag translation and preserving the address field.
func (e *Entry) SetArchFlags(flags PTEFlags) {
	*e = Entry(uint64(*e)&physAddrMask | uint64(flags))
}

// Bits returns the raw descriptor value.
func (e Entry) Bits() uint64 {
	return uint64(e)
}

// Unused returns true iff the descriptor is all zero.
func (e Entry) Unused() bool {
	return e == 0
}

// Present returns true iff the valid bit is set.
func (e Entry) Present() bool {
	return e.ArchFlags()&FlagValid != 0
}

// Dirty returns true iff the software dirty bit is set.
func (e Entry) Dirty() bool {
	return e.ArchFlags()&FlagDirty != 0
}

// SetDirty sets or clears the software dirty bit.
func (e *Entry) SetDirty(dirty bool) {
	if dirty {
		*e |= Entry(FlagDirty)
	} else {
		*e &^= Entry(FlagDirty)
	}
}

// Accessed returns true iff the access flag is set.
func (e Entry) Accessed() bool {
	return e.ArchFlags()&FlagAccessed != 0
}

// SetAccessed sets or clears the access flag.
func (e *Entry) SetAccessed(accessed bool) {
	if accessed {
		*e |= Entry(FlagAccessed)
	} else {
		*e &^= Entry(FlagAccessed)
	}
}

// Huge returns true iff this is a valid block descriptor. Last-level
// page descriptors share the table bit and report false.
func (e Entry) Huge() bool {
	return e.ArchFlags()&(FlagValid|FlagTable) == FlagValid
}

// Clear resets the descriptor to the all-zero unused state.
func (e *Entry) Clear() {
	*e = 0
}

// String implements fmt.Stringer.String, exposing the raw value, the
// decoded address and the decoded generic flags.
func (e Entry) String() string {
	return fmt.Sprintf("arm64.Entry(%#x: addr=%s flags=%s)", uint64(e), e.Address(), e.Flags())
}

// decodeFlags translates hardware flags to the generic set. An invalid
// descriptor has no meaningful permissions, whatever its other bits.
func decodeFlags(f PTEFlags) pte.MappingFlags {
	var ret pte.MappingFlags
	if f&FlagValid == 0 {
		return ret
	}
	ret = pte.Read
	if f&FlagReadOnly == 0 {
		ret |= pte.Write
	}
	if f&FlagXN == 0 {
		ret |= pte.Execute
	}
	if f&FlagUser != 0 {
		ret |= pte.User
	}
	switch f & attrIndexMask {
	case attrDevice:
		ret |= pte.Device
	case attrNormalNC:
		ret |= pte.Uncached
	}
	if pte.COWEnabled && f&FlagCOW != 0 {
		ret |= pte.CopyOnWrite
	}
	return ret
}

// encodeFlags translates the generic set to hardware flags. The empty
// set maps to the all-zero encoding; any other set implies valid. A
// valid mapping is always readable. Write permission clears the
// read-only bit and enables hardware dirty state management; execute
// permission clears both execute-never bits. Device memory is never
// marked shareable.
func encodeFlags(f pte.MappingFlags) PTEFlags {
	if f == 0 {
		return 0
	}
	ret := FlagValid | FlagShared
	if f.Has(pte.Write) {
		ret |= FlagDBM
	} else {
		ret |= FlagReadOnly
	}
	if !f.Has(pte.Execute) {
		ret |= FlagXN | FlagPXN
	}
	if f.Has(pte.User) {
		ret |= FlagUser | FlagNotGlobal
	}
	switch {
	case f.Has(pte.Device):
		ret = ret&^FlagShared | attrDevice
	case f.Has(pte.Uncached):
		ret |= attrNormalNC
	}
	if pte.COWEnabled && f.Has(pte.CopyOnWrite) {
		ret |= FlagCOW
	}
	return ret
}
