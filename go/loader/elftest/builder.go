// Package elftest builds small ELF64 little endian images for loader tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

type Prog struct {
	// defaults to PT_LOAD
	Type  elf.ProgType
	Vaddr uint64
	Data  []byte
	// defaults to len(Data)
	Memsz uint64
	// overrides the computed file offset/size when nonzero, for broken images
	Off    uint64
	Filesz uint64
}

type Rel struct {
	Off    uint64
	Sym    uint32
	Type   uint32
	Addend int64
}

// Builder describes an image. Sections are emitted only for the fields that
// are set: Text for .text, Dynsyms for .dynsym/.dynstr, Relocs for .rela.plt.
type Builder struct {
	Type    elf.Type
	Machine elf.Machine
	Entry   uint64

	Progs   []Prog
	Text    []byte
	Dynsyms []string
	Relocs  []Rel
	// emit an empty .rela.plt even without Relocs
	RelaPlt bool
}

func Exec(machine elf.Machine, entry uint64, progs ...Prog) *Builder {
	return &Builder{Type: elf.ET_EXEC, Machine: machine, Entry: entry, Progs: progs}
}

func Dyn(machine elf.Machine, entry uint64, progs ...Prog) *Builder {
	return &Builder{Type: elf.ET_DYN, Machine: machine, Entry: entry, Progs: progs}
}

type section struct {
	name string
	hdr  elf.Section64
	data []byte
}

func align(buf *bytes.Buffer) {
	for buf.Len()%8 != 0 {
		buf.WriteByte(0)
	}
}

func (b *Builder) Build() []byte {
	le := binary.LittleEndian
	var sections []*section
	add := func(name string, typ elf.SectionType, flags elf.SectionFlag, data []byte) int {
		sections = append(sections, &section{
			name: name,
			hdr:  elf.Section64{Type: uint32(typ), Flags: uint64(flags), Addralign: 1},
			data: data,
		})
		return len(sections)
	}
	if b.Text != nil {
		add(".text", elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, b.Text)
	}
	if b.Dynsyms != nil {
		var strtab bytes.Buffer
		strtab.WriteByte(0)
		var symtab bytes.Buffer
		binary.Write(&symtab, le, elf.Sym64{})
		for _, name := range b.Dynsyms {
			binary.Write(&symtab, le, elf.Sym64{
				Name: uint32(strtab.Len()),
				Info: elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			})
			strtab.WriteString(name)
			strtab.WriteByte(0)
		}
		strIdx := add(".dynstr", elf.SHT_STRTAB, elf.SHF_ALLOC, strtab.Bytes())
		symIdx := add(".dynsym", elf.SHT_DYNSYM, elf.SHF_ALLOC, symtab.Bytes())
		sym := sections[symIdx-1]
		sym.hdr.Link = uint32(strIdx)
		sym.hdr.Info = 1
		sym.hdr.Entsize = 24
		sym.hdr.Addralign = 8
	}
	if b.Relocs != nil || b.RelaPlt {
		var rela bytes.Buffer
		for _, r := range b.Relocs {
			binary.Write(&rela, le, elf.Rela64{
				Off:    r.Off,
				Info:   elf.R_INFO(r.Sym, r.Type),
				Addend: r.Addend,
			})
		}
		idx := add(".rela.plt", elf.SHT_RELA, elf.SHF_ALLOC|elf.SHF_INFO_LINK, rela.Bytes())
		s := sections[idx-1]
		s.hdr.Entsize = 24
		s.hdr.Addralign = 8
		for i, o := range sections {
			if o.name == ".dynsym" {
				s.hdr.Link = uint32(i + 1)
			}
		}
	}
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	for _, s := range sections {
		s.hdr.Name = uint32(shstrtab.Len())
		shstrtab.WriteString(s.name)
		shstrtab.WriteByte(0)
	}
	shstrName := uint32(shstrtab.Len())
	shstrtab.WriteString(".shstrtab\x00")
	shstrIdx := add(".shstrtab", elf.SHT_STRTAB, 0, shstrtab.Bytes())
	sections[shstrIdx-1].hdr.Name = shstrName

	// header, program headers, segment data, section data, section headers
	const ehsize, phentsize, shentsize = 64, 56, 64
	var body bytes.Buffer
	body.Write(make([]byte, ehsize+phentsize*len(b.Progs)))
	progs := make([]elf.Prog64, len(b.Progs))
	for i, p := range b.Progs {
		align(&body)
		memsz := p.Memsz
		if memsz == 0 {
			memsz = uint64(len(p.Data))
		}
		typ := p.Type
		if typ == elf.PT_NULL {
			typ = elf.PT_LOAD
		}
		progs[i] = elf.Prog64{
			Type:   uint32(typ),
			Flags:  uint32(elf.PF_R | elf.PF_W | elf.PF_X),
			Off:    uint64(body.Len()),
			Vaddr:  p.Vaddr,
			Paddr:  p.Vaddr,
			Filesz: uint64(len(p.Data)),
			Memsz:  memsz,
			Align:  8,
		}
		if p.Off != 0 {
			progs[i].Off = p.Off
		}
		if p.Filesz != 0 {
			progs[i].Filesz = p.Filesz
		}
		body.Write(p.Data)
	}
	for _, s := range sections {
		align(&body)
		s.hdr.Off = uint64(body.Len())
		s.hdr.Size = uint64(len(s.data))
		body.Write(s.data)
	}
	align(&body)
	shoff := uint64(body.Len())
	binary.Write(&body, le, elf.Section64{})
	for _, s := range sections {
		binary.Write(&body, le, s.hdr)
	}

	hdr := elf.Header64{
		Type:      uint16(b.Type),
		Machine:   uint16(b.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     b.Entry,
		Shoff:     shoff,
		Ehsize:    ehsize,
		Shentsize: shentsize,
		Shnum:     uint16(len(sections) + 1),
		Shstrndx:  uint16(shstrIdx),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	if len(progs) > 0 {
		hdr.Phoff = ehsize
		hdr.Phentsize = phentsize
		hdr.Phnum = uint16(len(progs))
	}
	out := body.Bytes()
	var head bytes.Buffer
	binary.Write(&head, le, hdr)
	for _, p := range progs {
		binary.Write(&head, le, p)
	}
	copy(out, head.Bytes())
	return out
}
