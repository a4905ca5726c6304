package riscv64

import (
	"debug/elf"
	"encoding/binary"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/plashload/go/cpu/unicorn"
	"github.com/lunixbochs/plashload/go/models"
)

// Guests receive the ABI table base in a7. Keystone has no RISC-V target, so
// there is no Asm.
var Arch = &models.Arch{
	Name:    "riscv64",
	Bits:    64,
	Order:   binary.LittleEndian,
	Machine: elf.EM_RISCV,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_RISCV, Mode: uc.MODE_RISCV64},

	PC:      uc.RISCV_REG_PC,
	SP:      uc.RISCV_REG_SP,
	AbiReg:  uc.RISCV_REG_A7,
	LinkReg: uc.RISCV_REG_RA,
	ArgRegs: []int{uc.RISCV_REG_A0, uc.RISCV_REG_A1, uc.RISCV_REG_A2, uc.RISCV_REG_A3, uc.RISCV_REG_A4, uc.RISCV_REG_A5},
	RetReg:  uc.RISCV_REG_A0,
	// jalr x0, 0(ra)
	Ret: []byte{0x67, 0x80, 0x00, 0x00},

	Regs: map[string]int{
		"ra": uc.RISCV_REG_RA,
		"sp": uc.RISCV_REG_SP,
		"gp": uc.RISCV_REG_GP,
		"tp": uc.RISCV_REG_TP,
		"t0": uc.RISCV_REG_T0,
		"t1": uc.RISCV_REG_T1,
		"t2": uc.RISCV_REG_T2,
		"s0": uc.RISCV_REG_S0,
		"s1": uc.RISCV_REG_S1,
		"a0": uc.RISCV_REG_A0,
		"a1": uc.RISCV_REG_A1,
		"a2": uc.RISCV_REG_A2,
		"a3": uc.RISCV_REG_A3,
		"a4": uc.RISCV_REG_A4,
		"a5": uc.RISCV_REG_A5,
		"a6": uc.RISCV_REG_A6,
		"a7": uc.RISCV_REG_A7,
		"t3": uc.RISCV_REG_T3,
		"t4": uc.RISCV_REG_T4,
		"t5": uc.RISCV_REG_T5,
		"t6": uc.RISCV_REG_T6,
		"pc": uc.RISCV_REG_PC,
	},
}
