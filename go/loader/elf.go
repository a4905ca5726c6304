package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/plashload/go/models"
)

const (
	UNKNOWN = iota
	EXEC
	DYN
)

const relaSize = 24

// the only relocation type each supported machine may use
var jumpSlots = map[elf.Machine]uint32{
	elf.EM_RISCV:   uint32(elf.R_RISCV_JUMP_SLOT),
	elf.EM_AARCH64: uint32(elf.R_AARCH64_JUMP_SLOT),
	elf.EM_X86_64:  uint32(elf.R_X86_64_JMP_SLOT),
}

// ElfImage is a parsed, not yet loaded, ELF blob.
type ElfImage struct {
	File *elf.File
	blob []byte
}

func NewElfImage(blob []byte) (*ElfImage, error) {
	file, err := elf.NewFile(bytes.NewReader(blob))
	if err != nil {
		return nil, models.WrapLoadError(err, models.MalformedElf, "parsing %d byte image", len(blob))
	}
	if file.Class != elf.ELFCLASS64 {
		return nil, models.LoadErrorf(models.UnsupportedMachine, 0, "", "%s images are not supported", file.Class)
	}
	if _, ok := jumpSlots[file.Machine]; !ok {
		return nil, models.LoadErrorf(models.UnsupportedMachine, 0, "", "unsupported machine %s", file.Machine)
	}
	return &ElfImage{File: file, blob: blob}, nil
}

func (e *ElfImage) Type() int {
	switch e.File.Type {
	case elf.ET_EXEC:
		return EXEC
	case elf.ET_DYN:
		return DYN
	default:
		return UNKNOWN
	}
}

func (e *ElfImage) Machine() elf.Machine {
	return e.File.Machine
}

func (e *ElfImage) Entry() uint64 {
	return e.File.Entry
}

func (e *ElfImage) ByteOrder() binary.ByteOrder {
	return e.File.ByteOrder
}

func (e *ElfImage) JumpSlot() uint32 {
	return jumpSlots[e.File.Machine]
}

// Blob returns the raw image bytes.
func (e *ElfImage) Blob() []byte {
	return e.blob
}

// Segments lists the PT_LOAD program headers in file order.
func (e *ElfImage) Segments() []models.Segment {
	var ret []models.Segment
	for _, prog := range e.File.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		ret = append(ret, models.Segment{
			Vaddr:  prog.Vaddr,
			Off:    prog.Off,
			Filesz: prog.Filesz,
			Memsz:  prog.Memsz,
		})
	}
	return ret
}

func (e *ElfImage) section(name string) (*elf.Section, []byte, error) {
	sec := e.File.Section(name)
	if sec == nil {
		return nil, nil, models.LoadErrorf(models.SectionNotFound, 0, name, "no %s section", name)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, nil, models.WrapLoadError(err, models.MalformedElf, "reading %s", name)
	}
	return sec, data, nil
}

func (e *ElfImage) Text() ([]byte, error) {
	_, data, err := e.section(".text")
	return data, err
}

// DynamicSymbols follows debug/elf in omitting the null symbol, so the symbol
// a relocation names with index i is at i-1.
func (e *ElfImage) DynamicSymbols() ([]elf.Symbol, error) {
	syms, err := e.File.DynamicSymbols()
	if err == elf.ErrNoSymbols {
		return nil, models.LoadErrorf(models.MissingDynamicSymbols, 0, ".dynsym", "image has no dynamic symbols")
	} else if err != nil {
		return nil, models.WrapLoadError(err, models.MalformedElf, "reading dynamic symbols")
	}
	return syms, nil
}

// PLTRelocs decodes the .rela.plt section.
func (e *ElfImage) PLTRelocs() ([]models.Reloc, error) {
	sec := e.File.Section(".rela.plt")
	if sec == nil {
		return nil, models.LoadErrorf(models.MissingRelocationSection, 0, ".rela.plt", "image has no PLT relocations")
	}
	data, err := sec.Data()
	if err != nil {
		return nil, models.WrapLoadError(err, models.MalformedElf, "reading .rela.plt")
	}
	if len(data)%relaSize != 0 {
		return nil, models.LoadErrorf(models.MalformedElf, sec.Offset, ".rela.plt", "section size %d is not a multiple of %d", len(data), relaSize)
	}
	relocs := make([]models.Reloc, len(data)/relaSize)
	stream := models.StrucStream{Stream: bytes.NewBuffer(data), Order: e.File.ByteOrder}
	for i := range relocs {
		if err := stream.Unpack(&relocs[i]); err != nil {
			return nil, models.WrapLoadError(err, models.MalformedElf, "decoding relocation %d", i)
		}
	}
	return relocs, nil
}
