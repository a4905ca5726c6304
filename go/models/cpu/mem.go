package cpu

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte
}

func (p *Page) String() string {
	prots := []int{PROT_READ, PROT_WRITE, PROT_EXEC}
	chars := []string{"r", "w", "x"}
	prot := ""
	for i := range prots {
		if p.Prot&prots[i] != 0 {
			prot += chars[i]
		} else {
			prot += "-"
		}
	}
	return fmt.Sprintf("0x%x-0x%x %s", p.Addr, p.Addr+p.Size, prot)
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr-p.Addr < p.Size
}

func (p *Page) Overlaps(addr, size uint64) bool {
	return addr < p.Addr+p.Size && p.Addr < addr+size
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

// Find returns the page containing addr, if any.
func (p Pages) Find(addr uint64) *Page {
	i := sort.Search(len(p), func(i int) bool { return p[i].Addr+p[i].Size > addr })
	if i < len(p) && p[i].Contains(addr) {
		return p[i]
	}
	return nil
}

// Mem is a flat page list for CPU implementations that don't carry their own
// memory. Mappings may not overlap.
type Mem struct {
	Pages Pages
}

func (m *Mem) MemMap(addr, size uint64, prot int) error {
	if size == 0 || addr+size < addr {
		return errors.Errorf("invalid mapping 0x%x+0x%x", addr, size)
	}
	for _, p := range m.Pages {
		if p.Overlaps(addr, size) {
			return errors.Errorf("mapping 0x%x+0x%x overlaps %s", addr, size, p)
		}
	}
	m.Pages = append(m.Pages, &Page{Addr: addr, Size: size, Prot: prot, Data: make([]byte, size)})
	sort.Sort(m.Pages)
	return nil
}

// access walks every page covering [addr, addr+len(p)) and calls fn for each
// chunk. prot is checked when nonzero.
func (m *Mem) access(addr uint64, size int, prot int, write bool, fn func(page []byte, pos int)) error {
	unmapped, protected := MEM_READ_UNMAPPED, MEM_READ_PROT
	if write {
		unmapped, protected = MEM_WRITE_UNMAPPED, MEM_WRITE_PROT
	} else if prot&PROT_EXEC != 0 {
		unmapped, protected = MEM_FETCH_UNMAPPED, MEM_FETCH_PROT
	}
	// validate the whole range before touching anything
	for pos, cur := 0, addr; pos < size; {
		page := m.Pages.Find(cur)
		if page == nil {
			return &MemError{Addr: addr, Size: size, Enum: unmapped}
		}
		if prot != 0 && page.Prot&prot != prot {
			return &MemError{Addr: addr, Size: size, Enum: protected}
		}
		n := int(page.Addr + page.Size - cur)
		pos, cur = pos+n, cur+uint64(n)
	}
	for pos, cur := 0, addr; pos < size; {
		page := m.Pages.Find(cur)
		off := cur - page.Addr
		n := int(page.Size - off)
		if n > size-pos {
			n = size - pos
		}
		fn(page.Data[off:off+uint64(n)], pos)
		pos, cur = pos+n, cur+uint64(n)
	}
	return nil
}

func (m *Mem) ReadProt(addr uint64, p []byte, prot int) error {
	return m.access(addr, len(p), prot, false, func(page []byte, pos int) {
		copy(p[pos:], page)
	})
}

func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	return m.access(addr, len(p), prot, true, func(page []byte, pos int) {
		copy(page, p[pos:])
	})
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.ReadProt(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.WriteProt(addr, p, 0)
}
