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

// Package memaddr provides the physical address value type consumed by
// page table entry encodings.
package memaddr

import "fmt"

// Page size constants for the 4 KiB base granule.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// PhysAddr represents a physical address.
type PhysAddr uint64

// RoundDown returns the address rounded down to the nearest multiple of
// alignment, which must be a power of two.
func (a PhysAddr) RoundDown(alignment uint64) PhysAddr {
	return a & ^PhysAddr(alignment-1)
}

// RoundUp returns the address rounded up to the nearest multiple of
// alignment, which must be a power of two. ok is true iff rounding up
// did not wrap around.
func (a PhysAddr) RoundUp(alignment uint64) (addr PhysAddr, ok bool) {
	addr = (a + PhysAddr(alignment) - 1).RoundDown(alignment)
	ok = addr >= a
	return
}

// PageRoundDown returns the address rounded down to the nearest page
// boundary.
func (a PhysAddr) PageRoundDown() PhysAddr {
	return a.RoundDown(PageSize)
}

// PageRoundUp returns the address rounded up to the nearest page boundary.
// ok is true iff rounding up did not wrap around.
func (a PhysAddr) PageRoundUp() (addr PhysAddr, ok bool) {
	return a.RoundUp(PageSize)
}

// PageOffset returns the offset of a into its containing page.
func (a PhysAddr) PageOffset() uint64 {
	return uint64(a) & (PageSize - 1)
}

// IsPageAligned returns true iff a falls on a page boundary.
func (a PhysAddr) IsPageAligned() bool {
	return a.PageOffset() == 0
}

// IsAligned returns true iff a is a multiple of alignment, which must be
// a power of two.
func (a PhysAddr) IsAligned(alignment uint64) bool {
	return uint64(a)&(alignment-1) == 0
}

// String implements fmt.Stringer.String.
func (a PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}
