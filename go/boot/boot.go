// Package boot hands a loaded Execution Zone to a CPU.
package boot

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/abi"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/models/cpu"
	"github.com/lunixbochs/plashload/go/zone"
)

const pageSize = 0x1000

// the guest returning here means it fell off the end of its entry function
const sentinel = 0

func pageAlign(n uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// Machine is everything control transfer needs besides the entry point.
type Machine struct {
	Cpu      cpu.Cpu
	Arch     *models.Arch
	Zone     *zone.Zone
	Registry *abi.Registry
	Host     *abi.Host
	Layout   models.Layout
}

func (m *Machine) mapMemory() error {
	c, l := m.Cpu, m.Layout
	maps := []struct {
		name string
		addr uint64
		size uint64
		prot int
		data []byte
	}{
		{"zone", m.Zone.Base, pageAlign(m.Zone.Size()), cpu.PROT_ALL, m.Zone.Bytes()},
		{"abi table", uint64(l.AbiTableStart), pageSize, cpu.PROT_READ, m.Registry.Table(m.Arch.Order)},
		{"host stubs", uint64(l.HostStubStart), pageSize, cpu.PROT_READ | cpu.PROT_EXEC, m.stubs()},
		{"stack", uint64(l.StackStart), pageAlign(uint64(l.StackSize)), cpu.PROT_READ | cpu.PROT_WRITE, nil},
	}
	for _, v := range maps {
		glog.V(2).Infof("map %s 0x%x+0x%x", v.name, v.addr, v.size)
		if err := c.MemMap(v.addr, v.size, v.prot); err != nil {
			return errors.Wrapf(err, "mapping %s", v.name)
		}
		if len(v.data) > 0 {
			if err := c.MemWrite(v.addr, v.data); err != nil {
				return errors.Wrapf(err, "writing %s", v.name)
			}
		}
	}
	return nil
}

// stubs fills the stub page with one return instruction per ABI slot.
func (m *Machine) stubs() []byte {
	page := make([]byte, pageSize)
	for i := 0; i < abi.Capacity; i++ {
		off := abi.StubAddr(0, i)
		copy(page[off:off+abi.StubStride], m.Arch.Ret)
	}
	return page
}

// initRegs sets up the entry state: stack, return sentinel and ABI table.
func (m *Machine) initRegs() error {
	a, c := m.Arch, m.Cpu
	sp := uint64(m.Layout.StackStart + m.Layout.StackSize)
	if a.LinkReg >= 0 {
		if err := c.RegWrite(a.LinkReg, sentinel); err != nil {
			return err
		}
	} else {
		sp -= uint64(a.PtrSize())
		if err := c.MemWrite(sp, make([]byte, a.PtrSize())); err != nil {
			return errors.Wrap(err, "pushing return address")
		}
	}
	if err := c.RegWrite(a.SP, sp); err != nil {
		return err
	}
	return c.RegWrite(a.AbiReg, uint64(m.Layout.AbiTableStart))
}

// Transfer runs the zone from entry until the guest calls exit. A clean exit
// returns models.ExitStatus, returning from entry is models.ErrGuestReturned.
func (m *Machine) Transfer(entry uint64) error {
	a, c := m.Arch, m.Cpu
	if err := m.mapMemory(); err != nil {
		return err
	}
	if err := m.initRegs(); err != nil {
		return err
	}
	host := m.Host
	host.Mem = c
	host.Exited = false
	host.Stop = c.Stop

	stubs := make(map[uint64]int)
	for _, f := range m.Registry.Funcs() {
		stubs[f.Addr] = f.Num
	}
	var callErr error
	dispatch := func(c cpu.Cpu, addr uint64, size uint32) {
		num, ok := stubs[addr]
		if !ok {
			return
		}
		args := make([]uint64, len(a.ArgRegs))
		for i, enum := range a.ArgRegs {
			args[i], _ = c.RegRead(enum)
		}
		glog.V(2).Infof("abi call %d %x", num, args)
		ret, err := m.Registry.Call(num, args)
		if err != nil {
			callErr = err
			c.Stop()
			return
		}
		c.RegWrite(a.RetReg, ret)
	}
	stubBase := uint64(m.Layout.HostStubStart)
	hh, err := c.HookAdd(cpu.HOOK_CODE, dispatch, stubBase, stubBase+pageSize-1)
	if err != nil {
		return err
	}
	defer c.HookDel(hh)

	glog.V(1).Infof("transfer to 0x%x, abi table at 0x%x", entry, uint64(m.Layout.AbiTableStart))
	err = c.Start(entry, sentinel)
	switch {
	case callErr != nil:
		return errors.Wrap(callErr, "ABI call failed")
	case host.Exited:
		return models.ExitStatus(host.Status)
	case err != nil:
		pc, _ := c.RegRead(a.PC)
		return errors.Wrapf(err, "guest fault at pc=0x%x", pc)
	}
	return errors.WithStack(models.ErrGuestReturned)
}

// Transfer is Machine.Transfer for callers that don't keep the Machine.
func Transfer(c cpu.Cpu, a *models.Arch, z *zone.Zone, reg *abi.Registry, host *abi.Host, layout models.Layout, entry uint64) error {
	m := &Machine{Cpu: c, Arch: a, Zone: z, Registry: reg, Host: host, Layout: layout}
	return m.Transfer(entry)
}
