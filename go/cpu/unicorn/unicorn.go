package unicorn

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/plashload/go/models/cpu"
)

type Builder struct {
	Arch, Mode int
}

func (b *Builder) New() (cpu.Cpu, error) {
	u, err := uc.NewUnicorn(b.Arch, b.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &UnicornCpu{u}, nil
}

type UnicornCpu struct {
	uc.Unicorn
}

func (u *UnicornCpu) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (cpu.Hook, error) {
	// have to wrap all hooks to conform to Cpu interface :(
	var wrap interface{}
	switch htype {
	case cpu.HOOK_BLOCK, cpu.HOOK_CODE:
		cbc, ok := cb.(cpu.CodeCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for code hook: %T", cb)
		}
		wrap = func(_ uc.Unicorn, addr uint64, size uint32) { cbc(u, addr, size) }

	case cpu.HOOK_INTR:
		cbc, ok := cb.(cpu.IntrCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for intr hook: %T", cb)
		}
		wrap = func(_ uc.Unicorn, intno uint32) { cbc(u, intno) }

	case cpu.HOOK_MEM_ERR:
		cbc, ok := cb.(cpu.MemFaultCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for fault hook: %T", cb)
		}
		wrap = func(_ uc.Unicorn, access int, addr uint64, size int, val int64) bool {
			return cbc(u, access, addr, size, val)
		}

	default:
		return nil, errors.New("Unknown hook type.")
	}
	hh, err := u.Unicorn.HookAdd(htype, wrap, start, end, extra...)
	return hh, errors.Wrap(err, "HookAdd() failed")
}

func (u *UnicornCpu) HookDel(hh cpu.Hook) error {
	h, ok := hh.(uc.Hook)
	if !ok {
		return errors.Errorf("not a unicorn hook: %T", hh)
	}
	return u.Unicorn.HookDel(h)
}

func (u *UnicornCpu) MemMap(addr, size uint64, prot int) error {
	return errors.Wrapf(u.Unicorn.MemMapProt(addr, size, prot), "MemMap(0x%x, 0x%x) failed", addr, size)
}
