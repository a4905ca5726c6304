package models

import "fmt"

// Segment is a PT_LOAD program header reduced to what the loader needs.
type Segment struct {
	Vaddr  uint64
	Off    uint64
	Filesz uint64
	Memsz  uint64
}

func (s Segment) String() string {
	return fmt.Sprintf("vaddr=0x%x off=0x%x filesz=0x%x memsz=0x%x", s.Vaddr, s.Off, s.Filesz, s.Memsz)
}

// Reloc is one .rela.plt entry. Off is relative to the Execution Zone base.
type Reloc struct {
	Off    uint64 `struc:"uint64"`
	Info   uint64 `struc:"uint64"`
	Addend int64  `struc:"int64"`
}

func (r Reloc) Sym() uint32 {
	return uint32(r.Info >> 32)
}

func (r Reloc) Type() uint32 {
	return uint32(r.Info)
}

// Fixup is a resolved relocation waiting to be written.
type Fixup struct {
	Reloc
	Name string
	Addr uint64
}
