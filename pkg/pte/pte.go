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

// Package pte defines the architecture-neutral page table entry contract.
//
// MappingFlags is the single permission currency passed between page
// table management code and a concrete entry encoding; it never carries
// hardware-specific bits such as valid, global, accessed or dirty. The
// concrete encodings (riscv64, x86, arm64) implement the PTE interface
// and translate MappingFlags to and from their private bit layouts.
//
// Entries are plain fixed-width values with no internal synchronization.
// Callers that share table slots with other mutators, or that observe
// bits the MMU updates itself, own the required fencing.
package pte

import (
	"ptentry.dev/ptentry/pkg/memaddr"
)

// MappingFlags describes the permissions and attributes of a mapped
// memory region. The empty set denotes "no mapping".
type MappingFlags uint64

const (
	// Read marks the memory readable.
	Read MappingFlags = 1 << iota

	// Write marks the memory writable.
	Write

	// Execute marks the memory executable.
	Execute

	// User marks the memory accessible from user mode.
	User

	// Device marks the memory as device memory.
	Device

	// Uncached marks the memory as uncached.
	Uncached

	// CopyOnWrite marks the memory as logically writable but requiring a
	// fault-triggered copy before the first actual write. Meaningful only
	// when COWEnabled.
	CopyOnWrite
)

// Has returns true iff f contains every bit of other.
func (f MappingFlags) Has(other MappingFlags) bool {
	return f&other == other
}

// HasAny returns true iff f contains at least one bit of other.
func (f MappingFlags) HasAny(other MappingFlags) bool {
	return f&other != 0
}

// String implements fmt.Stringer.String, rendering the classic rwx
// permission triple.
func (f MappingFlags) String() string {
	b := [3]byte{'-', '-', '-'}
	if f.Has(Read) {
		b[0] = 'r'
	}
	if f.Has(Write) {
		b[1] = 'w'
	}
	if f.Has(Execute) {
		b[2] = 'x'
	}
	return string(b[:])
}

// MarkCOW downgrades a writable flag set to a copy-on-write one: if
// Write is present it is removed and CopyOnWrite is added. Without the
// ptecow build tag this is the identity.
func MarkCOW(f MappingFlags) MappingFlags {
	if COWEnabled && f.Has(Write) {
		f &^= Write
		f |= CopyOnWrite
	}
	return f
}

// Protect carries the attributes of f that must survive a permission
// change over to the requested new flag set: CopyOnWrite (when the
// feature is compiled in), Device and User.
func (f MappingFlags) Protect(to MappingFlags) MappingFlags {
	if COWEnabled {
		to |= f & CopyOnWrite
	}
	to |= f & (Device | User)
	return to
}

// PTE is the contract every concrete page table entry encoding
// satisfies. Constructors (NewPage, NewTable) and the arch-native flag
// escape hatch (SetArchFlags) live in the encoding packages, since
// their flag types are architecture-private.
type PTE interface {
	// Address returns the physical address mapped by this entry, masked
	// to the encoding's address field.
	Address() memaddr.PhysAddr

	// SetAddress replaces the address field, leaving flag bits intact.
	// Bits outside the field are silently truncated.
	SetAddress(memaddr.PhysAddr)

	// Flags translates the hardware bits to the generic flag set. An
	// entry whose valid marker is clear decodes to the empty set.
	Flags() MappingFlags

	// SetFlags rederives the hardware bits from the generic set,
	// reasserting the encoding's mandatory status bits. The huge
	// argument selects the terminal descriptor form on encodings that
	// distinguish one.
	SetFlags(flags MappingFlags, huge bool)

	// Bits returns the raw entry value.
	Bits() uint64

	// Unused returns true iff the entry is all zero.
	Unused() bool

	// Present returns true iff the entry's valid marker is set.
	Present() bool

	// Dirty returns true iff the mapped page has been written since the
	// dirty bit was last cleared.
	Dirty() bool

	// SetDirty sets or clears the dirty bit, leaving all other bits
	// untouched.
	SetDirty(bool)

	// Accessed returns true iff the mapped page has been read, written
	// or fetched from since the accessed bit was last cleared.
	Accessed() bool

	// SetAccessed sets or clears the accessed bit, leaving all other
	// bits untouched.
	SetAccessed(bool)

	// Huge returns true iff the entry terminates translation at this
	// level rather than pointing to a further table.
	Huge() bool

	// Clear resets the entry to the all-zero unused state.
	Clear()
}

// CheckLeafFlags enforces the leaf entry precondition: a valid mapping
// must grant at least one of Read or Execute. Violating it is a caller
// bug, so the check panics, and only under the ptedebug build tag;
// release builds produce a well-formed but meaningless entry instead.
func CheckLeafFlags(f MappingFlags) {
	if DebugChecks && !f.HasAny(Read|Execute) {
		panic("leaf entry without read or execute permission")
	}
}
