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

package riscv64_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ptentry.dev/ptentry/pkg/memaddr"
	"ptentry.dev/ptentry/pkg/pte"
	"ptentry.dev/ptentry/pkg/pte/riscv64"
)

// decoded is the observable state of an entry, for cmp diffs.
type decoded struct {
	Addr     memaddr.PhysAddr
	Flags    pte.MappingFlags
	Present  bool
	Huge     bool
	Dirty    bool
	Accessed bool
}

func decode(e riscv64.Entry) decoded {
	return decoded{
		Addr:     e.Address(),
		Flags:    e.Flags(),
		Present:  e.Present(),
		Huge:     e.Huge(),
		Dirty:    e.Dirty(),
		Accessed: e.Accessed(),
	}
}

func TestNewPage(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)

	// V|R|W|A|D.
	if got, want := e.Bits()&0xff, uint64(0xc7); got != want {
		t.Errorf("low byte = %#x, want %#x", got, want)
	}
	want := decoded{
		Addr:     0x80200000,
		Flags:    pte.Read | pte.Write,
		Present:  true,
		Huge:     true,
		Dirty:    true,
		Accessed: true,
	}
	if diff := cmp.Diff(want, decode(e)); diff != "" {
		t.Errorf("entry state mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTable(t *testing.T) {
	e := riscv64.NewTable(0x80100000)
	want := decoded{
		Addr:    0x80100000,
		Present: true,
	}
	if diff := cmp.Diff(want, decode(e)); diff != "" {
		t.Errorf("table entry state mismatch (-want +got):\n%s", diff)
	}
	if got := e.ArchFlags(); got != riscv64.FlagV {
		t.Errorf("ArchFlags() = %#x, want valid bit only", uint64(got))
	}
}

func TestAddressRoundTrip(t *testing.T) {
	for _, addr := range []memaddr.PhysAddr{
		0x0,
		0x1000,
		0x80200000,
		0x80100000,
		1 << 32,
		(1 << 55) - memaddr.PageSize,
	} {
		e := riscv64.NewPage(addr, pte.Read, false)
		if got := e.Address(); got != addr {
			t.Errorf("Address() = %s, want %s", got, addr)
		}
	}
}

func TestAddressTruncation(t *testing.T) {
	// The field covers address bits 12..55; bits above are dropped.
	var e riscv64.Entry
	e.SetAddress(0xffff000080200000)
	if got, want := e.Address(), memaddr.PhysAddr(0x00ff000080200000); got != want {
		t.Errorf("Address() = %s, want %s", got, want)
	}
}

func TestFlagsRoundTrip(t *testing.T) {
	sets := []pte.MappingFlags{
		pte.Read,
		pte.Read | pte.Write,
		pte.Read | pte.Execute,
		pte.Read | pte.Write | pte.Execute,
		pte.Read | pte.User,
		pte.Read | pte.Write | pte.Execute | pte.User,
		pte.Execute,
	}
	if pte.COWEnabled {
		sets = append(sets, pte.Read|pte.CopyOnWrite, pte.Read|pte.User|pte.CopyOnWrite)
	}
	for _, f := range sets {
		e := riscv64.NewPage(0x80200000, f, false)
		if got := e.Flags(); got != f {
			t.Errorf("Flags() = %#x, want %#x", uint64(got), uint64(f))
		}
	}

	// Device and Uncached have no Sv39/Sv48 representation.
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Device|pte.Uncached, false)
	if got := e.Flags(); got != pte.Read {
		t.Errorf("Flags() = %#x, want device/uncached dropped", uint64(got))
	}
}

func TestEmptyFlagsLaw(t *testing.T) {
	// Any entry without the valid bit decodes to the empty set,
	// whatever its other bits.
	var e riscv64.Entry
	e.SetArchFlags(riscv64.FlagR | riscv64.FlagW | riscv64.FlagD)
	if got := e.Flags(); got != 0 {
		t.Errorf("Flags() = %#x, want empty for invalid entry", uint64(got))
	}

	if !pte.DebugChecks {
		// Encoding the empty set never produces the valid bit.
		e.SetFlags(0, false)
		if e.Present() {
			t.Error("empty flag set must not encode as present")
		}
	}
}

func TestClearUnused(t *testing.T) {
	var zero riscv64.Entry
	if !zero.Unused() || zero.Present() {
		t.Error("zero entry must be unused and not present")
	}

	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)
	if e.Unused() {
		t.Error("mapped entry must not be unused")
	}
	e.Clear()
	if !e.Unused() || e.Present() {
		t.Error("cleared entry must be unused and not present")
	}
}

func TestDirtyAccessedIndependence(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)

	e.SetDirty(false)
	if e.Dirty() || !e.Accessed() {
		t.Errorf("clearing dirty must not touch accessed: %s", e)
	}
	e.SetAccessed(false)
	if e.Accessed() || e.Dirty() {
		t.Errorf("clearing accessed must not set dirty: %s", e)
	}
	e.SetDirty(true)
	if !e.Dirty() || e.Accessed() {
		t.Errorf("setting dirty must not touch accessed: %s", e)
	}
	e.SetAccessed(true)
	if !e.Accessed() || !e.Dirty() {
		t.Errorf("setting accessed must not clear dirty: %s", e)
	}
	if got := e.Flags(); got != pte.Read|pte.Write {
		t.Errorf("dirty/accessed churn changed flags: %#x", uint64(got))
	}
}

func TestSetAddressPreservesFlags(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write|pte.User, false)
	before := e.ArchFlags()
	e.SetAddress(0x80300000)
	if got := e.Address(); got != 0x80300000 {
		t.Errorf("Address() = %s, want 0x80300000", got)
	}
	if got := e.ArchFlags(); got != before {
		t.Errorf("SetAddress changed flags: %#x, want %#x", uint64(got), uint64(before))
	}
}

func TestSetArchFlagsPreservesAddress(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)
	e.SetArchFlags(riscv64.FlagV | riscv64.FlagR | riscv64.FlagG)
	if got := e.Address(); got != 0x80200000 {
		t.Errorf("Address() = %s, want 0x80200000", got)
	}
	if got := e.ArchFlags(); got != riscv64.FlagV|riscv64.FlagR|riscv64.FlagG {
		t.Errorf("ArchFlags() = %#x, want V|R|G", uint64(got))
	}
}

func TestSetFlagsReassertsStatusBits(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)
	e.SetDirty(false)
	e.SetAccessed(false)
	e.SetFlags(pte.Read, false)
	if !e.Dirty() || !e.Accessed() {
		t.Errorf("SetFlags must reassert accessed and dirty: %s", e)
	}
	if got := e.Flags(); got != pte.Read {
		t.Errorf("Flags() = %#x, want r", uint64(got))
	}
}

func TestMarkCOWEntry(t *testing.T) {
	if !pte.COWEnabled {
		t.Skip("copy-on-write capability not compiled in")
	}
	f := pte.MarkCOW(pte.Read | pte.Write)
	if f != pte.Read|pte.CopyOnWrite {
		t.Fatalf("MarkCOW(rw) = %#x, want r|cow", uint64(f))
	}
	// The downgraded set still satisfies the leaf precondition.
	e := riscv64.NewPage(0x80200000, f, false)
	if got := e.Flags(); got != f {
		t.Errorf("Flags() = %#x, want %#x", uint64(got), uint64(f))
	}
	if e.ArchFlags()&riscv64.FlagW != 0 {
		t.Error("COW entry must not carry the hardware write bit")
	}
	if e.ArchFlags()&riscv64.FlagRSW1 == 0 {
		t.Error("COW entry must carry the RSW1 software bit")
	}
}

func TestStringExposesState(t *testing.T) {
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Write, false)
	s := e.String()
	for _, want := range []string{"0x80200000", "rw-"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, want it to contain %q", s, want)
		}
	}
}

func TestGenericInterface(t *testing.T) {
	// Exercise the entry through the architecture-neutral contract the
	// way a table walker would.
	e := riscv64.NewPage(0x80200000, pte.Read|pte.Execute, false)
	var g pte.PTE = &e
	if !g.Present() || !g.Huge() {
		t.Error("leaf entry must be present and terminal")
	}
	g.SetAddress(0x80400000)
	if got := g.Address(); got != 0x80400000 {
		t.Errorf("Address() = %s, want 0x80400000", got)
	}
	g.Clear()
	if !g.Unused() {
		t.Error("cleared entry must be unused")
	}
}
