package arch

import (
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/arch/arm64"
	"github.com/lunixbochs/plashload/go/arch/riscv64"
	"github.com/lunixbochs/plashload/go/arch/x86_64"
	"github.com/lunixbochs/plashload/go/models"
)

var archMap = map[string]*models.Arch{
	"arm64":   arm64.Arch,
	"riscv64": riscv64.Arch,
	"x86_64":  x86_64.Arch,
}

func GetArch(name string) (*models.Arch, error) {
	a, ok := archMap[name]
	if !ok {
		return nil, errors.Errorf("Arch '%s' not found.", name)
	}
	return a, nil
}

// ForMachine finds the arch matching an ELF header machine field.
func ForMachine(m elf.Machine) (*models.Arch, bool) {
	for _, a := range archMap {
		if a.Machine == m {
			return a, true
		}
	}
	return nil, false
}
