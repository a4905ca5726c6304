package models

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/plashload/go/models/cpu"
)

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val uint64
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

type Arch struct {
	Name  string
	Bits  int
	Order binary.ByteOrder

	Machine elf.Machine

	Cpu cpu.Builder
	Dis Disassembler
	// nil where keystone has no backend
	Asm Assembler

	PC, SP int
	// holds the ABI table base at entry
	AbiReg int
	// receives the return address; -1 means it lives on the stack
	LinkReg int
	ArgRegs []int
	RetReg  int
	// encoding of a plain function return, used for host stubs
	Ret []byte

	Regs map[string]int

	// sorted for RegDump
	regList regList
}

func (a *Arch) PtrSize() int {
	return a.Bits / 8
}

func (a *Arch) String() string {
	return fmt.Sprintf("<Arch %s>", a.Name)
}

func (a *Arch) RegDump(c cpu.Cpu) ([]RegVal, error) {
	if a.regList == nil {
		rl := make(regList, 0, len(a.Regs))
		for name, enum := range a.Regs {
			rl = append(rl, Reg{enum, name})
		}
		sort.Sort(rl)
		a.regList = rl
	}
	ret := make([]RegVal, len(a.regList))
	for i, r := range a.regList {
		val, err := c.RegRead(r.Enum)
		if err != nil {
			return nil, err
		}
		ret[i] = RegVal{r, val}
	}
	return ret, nil
}

// RegEnums lists every register enum the arch knows about.
func (a *Arch) RegEnums() []int {
	enums := make([]int, 0, len(a.Regs))
	for _, e := range a.Regs {
		enums = append(enums, e)
	}
	return enums
}
