package arm64

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

// Guests receive the ABI table base in x7.
var Arch = &models.Arch{
	Name:    "arm64",
	Bits:    64,
	Order:   binary.LittleEndian,
	Machine: elf.EM_AARCH64,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_ARM64, Mode: uc.MODE_ARM},
	Dis: &cpu.Capstr{Arch: cs.ARCH_ARM64, Mode: cs.MODE_ARM},
	Asm: &cpu.Keystone{Arch: ks.ARCH_ARM64, Mode: ks.MODE_LITTLE_ENDIAN},

	PC:      uc.ARM64_REG_PC,
	SP:      uc.ARM64_REG_SP,
	AbiReg:  uc.ARM64_REG_X7,
	LinkReg: uc.ARM64_REG_LR,
	ArgRegs: []int{uc.ARM64_REG_X0, uc.ARM64_REG_X1, uc.ARM64_REG_X2, uc.ARM64_REG_X3, uc.ARM64_REG_X4, uc.ARM64_REG_X5},
	RetReg:  uc.ARM64_REG_X0,
	// ret
	Ret: []byte{0xc0, 0x03, 0x5f, 0xd6},

	Regs: map[string]int{
		"x0":  uc.ARM64_REG_X0,
		"x1":  uc.ARM64_REG_X1,
		"x2":  uc.ARM64_REG_X2,
		"x3":  uc.ARM64_REG_X3,
		"x4":  uc.ARM64_REG_X4,
		"x5":  uc.ARM64_REG_X5,
		"x6":  uc.ARM64_REG_X6,
		"x7":  uc.ARM64_REG_X7,
		"x8":  uc.ARM64_REG_X8,
		"x16": uc.ARM64_REG_X16,
		"x17": uc.ARM64_REG_X17,
		"fp":  uc.ARM64_REG_FP,
		"lr":  uc.ARM64_REG_LR,
		"sp":  uc.ARM64_REG_SP,
		"pc":  uc.ARM64_REG_PC,
	},
}
