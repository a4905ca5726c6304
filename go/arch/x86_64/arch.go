package x86_64

import (
	"debug/elf"
	"encoding/binary"

	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	cs "github.com/lunixbochs/capstr"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/plashload/go/cpu"
	"github.com/lunixbochs/plashload/go/cpu/unicorn"
	"github.com/lunixbochs/plashload/go/models"
)

// Guests receive the ABI table base in r9. The return address is pushed on
// the stack, so there is no link register.
var Arch = &models.Arch{
	Name:    "x86_64",
	Bits:    64,
	Order:   binary.LittleEndian,
	Machine: elf.EM_X86_64,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_X86, Mode: uc.MODE_64},
	Dis: &cpu.Capstr{Arch: cs.ARCH_X86, Mode: cs.MODE_64},
	Asm: &cpu.Keystone{Arch: ks.ARCH_X86, Mode: ks.MODE_64},

	PC:      uc.X86_REG_RIP,
	SP:      uc.X86_REG_RSP,
	AbiReg:  uc.X86_REG_R9,
	LinkReg: -1,
	ArgRegs: []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_RCX, uc.X86_REG_R8},
	RetReg:  uc.X86_REG_RAX,
	// ret
	Ret: []byte{0xc3},

	Regs: map[string]int{
		"rax": uc.X86_REG_RAX,
		"rbx": uc.X86_REG_RBX,
		"rcx": uc.X86_REG_RCX,
		"rdx": uc.X86_REG_RDX,
		"rsi": uc.X86_REG_RSI,
		"rdi": uc.X86_REG_RDI,
		"rbp": uc.X86_REG_RBP,
		"rsp": uc.X86_REG_RSP,
		"r8":  uc.X86_REG_R8,
		"r9":  uc.X86_REG_R9,
		"r10": uc.X86_REG_R10,
		"r11": uc.X86_REG_R11,
		"rip": uc.X86_REG_RIP,
	},
}
