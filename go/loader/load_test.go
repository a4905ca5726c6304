package loader

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/loader/elftest"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/zone"
)

const (
	testBase = 0x10000
	testSize = 0x1000
)

var jumpSlot = uint32(elf.R_RISCV_JUMP_SLOT)

type mapResolver map[string]uint64

func (m mapResolver) ResolveByName(name string) (uint64, error) {
	if addr, ok := m[name]; ok {
		return addr, nil
	}
	return 0, errors.Errorf("unknown %s", name)
}

var testAbi = mapResolver{
	"hello": 0xffffffc0800fe010,
	"puts":  0xffffffc0800fe040,
}

func newZone() *zone.Zone {
	return zone.New(testBase, testSize, nil)
}

func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func expectKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	if got := models.KindOf(err); got != kind {
		t.Fatalf("got error %v (kind %s), want %s", err, got, kind)
	}
}

func pieImage(relocs ...elftest.Rel) *elftest.Builder {
	b := elftest.Dyn(elf.EM_RISCV, 0x20, elftest.Prog{Vaddr: 0, Data: fill(0x13, 0x80)})
	b.Dynsyms = []string{"hello", "puts", "printf"}
	b.Relocs = relocs
	b.RelaPlt = true
	return b
}

func TestLegacyText(t *testing.T) {
	text := []byte{0x97, 0x02, 0x00, 0x00, 0x93, 0x82, 0x02, 0x00}
	b := &elftest.Builder{Type: elf.ET_EXEC, Machine: elf.EM_RISCV, Entry: testBase, Text: text}
	z := newZone()
	ld, err := Load(b.Build(), z, testAbi)
	if err != nil {
		t.Fatal(err)
	}
	if !ld.Legacy {
		t.Error("image without program headers not loaded as legacy text")
	}
	got := z.Bytes()
	if !bytes.Equal(got[:len(text)], text) {
		t.Fatalf("zone head %x, want %x", got[:len(text)], text)
	}
	if !bytes.Equal(got[len(text):], make([]byte, testSize-len(text))) {
		t.Fatal("bytes after .text were written")
	}
}

func TestLegacyTextWithoutLoadSegments(t *testing.T) {
	text := fill(0x13, 0x10)
	b := elftest.Exec(elf.EM_RISCV, testBase, elftest.Prog{Type: elf.PT_NOTE, Vaddr: testBase + 0x100, Data: fill(0xee, 8)})
	b.Text = text
	z := newZone()
	ld, err := Load(b.Build(), z, testAbi)
	if err != nil {
		t.Fatal(err)
	}
	if !ld.Legacy {
		t.Fatal("image with only a PT_NOTE header not loaded from .text")
	}
	if got, _ := z.Read(0, uint64(len(text))); !bytes.Equal(got, text) {
		t.Fatalf("zone head %x, want %x", got, text)
	}
	if z.Used() != uint64(len(text)) {
		t.Fatal("PT_NOTE contents copied into the zone")
	}
}

func TestLegacyTextErrors(t *testing.T) {
	b := &elftest.Builder{Type: elf.ET_EXEC, Machine: elf.EM_RISCV, Entry: testBase}
	_, err := Load(b.Build(), newZone(), testAbi)
	expectKind(t, err, models.SectionNotFound)

	b.Text = fill(1, testSize+1)
	z := newZone()
	_, err = Load(b.Build(), z, testAbi)
	expectKind(t, err, models.SegmentOutOfBounds)
	if z.Used() != 0 {
		t.Fatal("oversized .text was partially written")
	}
}

func TestZeroFill(t *testing.T) {
	b := elftest.Exec(elf.EM_RISCV, testBase+0x100,
		elftest.Prog{Vaddr: testBase + 0x100, Data: fill(0xaa, 0x10), Memsz: 0x40},
		elftest.Prog{Vaddr: testBase + 0x800, Data: fill(0xbb, 0x8), Memsz: 0x100},
	)
	z := newZone()
	z.Fill(0, testSize, 0xff)
	ld, err := Load(b.Build(), z, testAbi)
	if err != nil {
		t.Fatal(err)
	}
	if len(ld.Segments) != 2 {
		t.Fatalf("got %d segments", len(ld.Segments))
	}
	checks := []struct {
		off  uint64
		want []byte
	}{
		{0x100, fill(0xaa, 0x10)},
		{0x110, make([]byte, 0x30)},
		{0x140, fill(0xff, 0x10)},
		{0x800, fill(0xbb, 0x8)},
		{0x808, make([]byte, 0xf8)},
		{0x900, fill(0xff, 0x10)},
	}
	for _, c := range checks {
		got, err := z.Read(c.off, uint64(len(c.want)))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("zone+0x%x = %x, want %x", c.off, got, c.want)
		}
	}
}

func TestSegmentOverflow(t *testing.T) {
	tests := []struct {
		name  string
		progs []elftest.Prog
	}{
		{"memsz past end", []elftest.Prog{
			{Vaddr: testBase, Data: fill(1, 0x10)},
			{Vaddr: testBase + testSize - 0x10, Data: fill(2, 0x10), Memsz: 0x11},
		}},
		{"vaddr past end", []elftest.Prog{
			{Vaddr: testBase, Data: fill(1, 0x10)},
			{Vaddr: testBase + testSize, Data: fill(2, 1)},
		}},
		{"vaddr below base", []elftest.Prog{
			{Vaddr: testBase - 0x10, Data: fill(1, 0x8)},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			z := newZone()
			_, err := Load(elftest.Exec(elf.EM_RISCV, testBase, test.progs...).Build(), z, testAbi)
			expectKind(t, err, models.SegmentOutOfBounds)
			if z.Used() != 0 {
				t.Fatal("zone written before all segments were validated")
			}
		})
	}
}

func TestMalformedSegments(t *testing.T) {
	z := newZone()
	b := elftest.Exec(elf.EM_RISCV, testBase, elftest.Prog{Vaddr: testBase, Data: fill(1, 0x10), Memsz: 0x8})
	_, err := Load(b.Build(), z, testAbi)
	expectKind(t, err, models.MalformedElf)

	b = elftest.Exec(elf.EM_RISCV, testBase, elftest.Prog{Vaddr: testBase, Data: fill(1, 0x10), Filesz: 0x10000, Memsz: 0x10000})
	_, err = Load(b.Build(), z, testAbi)
	expectKind(t, err, models.MalformedElf)
	if z.Used() != 0 {
		t.Fatal("malformed image wrote to the zone")
	}
}

func TestPatchPLT(t *testing.T) {
	b := pieImage(
		elftest.Rel{Off: 0x40, Sym: 1, Type: jumpSlot},
		elftest.Rel{Off: 0x48, Sym: 2, Type: jumpSlot},
	)
	z := newZone()
	ld, err := Load(b.Build(), z, testAbi)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		off  uint64
		name string
	}{{0x40, "hello"}, {0x48, "puts"}} {
		got, err := z.ReadUint(c.off, 8)
		if err != nil {
			t.Fatal(err)
		}
		if got != testAbi[c.name] {
			t.Errorf("slot 0x%x = 0x%x, want %s at 0x%x", c.off, got, c.name, testAbi[c.name])
		}
	}
	var names []string
	for _, f := range ld.Fixups {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"hello", "puts"}, names); diff != "" {
		t.Errorf("fixups mismatch (-want +got):\n%s", diff)
	}

	before := z.Bytes()
	img, err := NewElfImage(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PatchPLT(img, z, testAbi); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, z.Bytes()) {
		t.Fatal("second patch changed the zone")
	}
}

func TestPatchPLTUnresolved(t *testing.T) {
	b := pieImage(
		elftest.Rel{Off: 0x40, Sym: 1, Type: jumpSlot},
		elftest.Rel{Off: 0x48, Sym: 3, Type: jumpSlot},
	)
	z := newZone()
	_, err := Load(b.Build(), z, testAbi)
	expectKind(t, err, models.UnresolvedAbiSymbol)
	le, _ := models.AsLoadError(err)
	if le.Name != "printf" || le.Off != 0x48 {
		t.Errorf("diagnostic names %q at 0x%x", le.Name, le.Off)
	}
	if z.Used() != 0 {
		t.Fatal("zone written despite an unresolved import")
	}
}

// each machine checks its own JUMP_SLOT number
func TestPatchPLTMachines(t *testing.T) {
	for _, m := range []struct {
		machine  elf.Machine
		jumpSlot uint32
	}{
		{elf.EM_RISCV, uint32(elf.R_RISCV_JUMP_SLOT)},
		{elf.EM_AARCH64, uint32(elf.R_AARCH64_JUMP_SLOT)},
		{elf.EM_X86_64, uint32(elf.R_X86_64_JMP_SLOT)},
	} {
		t.Run(m.machine.String(), func(t *testing.T) {
			b := pieImage(elftest.Rel{Off: 0x40, Sym: 2, Type: m.jumpSlot})
			b.Machine = m.machine
			z := newZone()
			if _, err := Load(b.Build(), z, testAbi); err != nil {
				t.Fatal(err)
			}
			if got, _ := z.ReadUint(0x40, 8); got != testAbi["puts"] {
				t.Errorf("slot = 0x%x, want 0x%x", got, testAbi["puts"])
			}
		})
	}
}

func TestPatchPLTErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *elftest.Builder
		kind  models.ErrorKind
	}{
		{"wrong type", func() *elftest.Builder {
			return pieImage(elftest.Rel{Off: 0x40, Sym: 1, Type: uint32(elf.R_RISCV_64)})
		}, models.UnsupportedRelocation},
		{"null symbol", func() *elftest.Builder {
			return pieImage(elftest.Rel{Off: 0x40, Sym: 0, Type: jumpSlot})
		}, models.MalformedElf},
		{"symbol index past table", func() *elftest.Builder {
			return pieImage(elftest.Rel{Off: 0x40, Sym: 9, Type: jumpSlot})
		}, models.MalformedElf},
		{"slot outside zone", func() *elftest.Builder {
			return pieImage(elftest.Rel{Off: testSize - 4, Sym: 1, Type: jumpSlot})
		}, models.RelocationOutOfBounds},
		{"no dynsym", func() *elftest.Builder {
			b := pieImage()
			b.Dynsyms = nil
			return b
		}, models.MissingDynamicSymbols},
		{"no rela.plt", func() *elftest.Builder {
			b := pieImage()
			b.RelaPlt = false
			return b
		}, models.MissingRelocationSection},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(test.build().Build(), newZone(), testAbi)
			expectKind(t, err, test.kind)
		})
	}
}

func TestEntry(t *testing.T) {
	exec := elftest.Exec(elf.EM_RISCV, testBase+0x10, elftest.Prog{Vaddr: testBase, Data: fill(1, 0x20)})
	ld, err := Load(exec.Build(), newZone(), testAbi)
	if err != nil {
		t.Fatal(err)
	}
	if ld.Type != EXEC || ld.Entry != testBase+0x10 {
		t.Errorf("static entry 0x%x (type %d)", ld.Entry, ld.Type)
	}

	ld, err = Load(pieImage().Build(), newZone(), testAbi)
	if err != nil {
		t.Fatal(err)
	}
	if ld.Type != DYN || ld.Entry != testBase+0x20 {
		t.Errorf("pie entry 0x%x (type %d)", ld.Entry, ld.Type)
	}

	exec.Entry = 0x20
	_, err = Load(exec.Build(), newZone(), testAbi)
	expectKind(t, err, models.EntryOutOfBounds)
}

func TestRejectImage(t *testing.T) {
	_, err := Load([]byte("not an elf at all"), newZone(), testAbi)
	expectKind(t, err, models.MalformedElf)

	rel := &elftest.Builder{Type: elf.ET_REL, Machine: elf.EM_RISCV}
	_, err = Load(rel.Build(), newZone(), testAbi)
	expectKind(t, err, models.UnsupportedElfType)

	i386 := elftest.Exec(elf.EM_386, testBase, elftest.Prog{Vaddr: testBase, Data: fill(1, 4)})
	_, err = Load(i386.Build(), newZone(), testAbi)
	expectKind(t, err, models.UnsupportedMachine)
}
