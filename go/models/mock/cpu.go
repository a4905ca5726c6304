package mock

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/models/cpu"
)

// ErrStopped unwinds a Program after Stop was called.
var ErrStopped = errors.New("cpu stopped")

// Program stands in for guest machine code placed at an address.
type Program func(c *Cpu) error

// Cpu runs Go Programs instead of machine code. Memory, registers, hooks and
// the call/return convention of an Arch are modeled, nothing else.
type Cpu struct {
	*cpu.Regs
	*cpu.Hooks
	cpu.Mem

	Arch     *models.Arch
	Programs map[uint64]Program

	stopped bool
	closed  bool
}

func New(a *models.Arch) *Cpu {
	c := &Cpu{
		Regs:     cpu.NewRegs(uint(a.Bits), a.RegEnums()),
		Arch:     a,
		Programs: make(map[uint64]Program),
	}
	c.Hooks = cpu.NewHooks(c)
	return c
}

// Builder hands out a prepared Cpu.
type Builder struct {
	Cpu *Cpu
}

func (b *Builder) New() (cpu.Cpu, error) {
	return b.Cpu, nil
}

func (c *Cpu) fetch(addr uint64) error {
	p := c.Pages.Find(addr)
	if p == nil {
		return errors.WithStack(&cpu.MemError{Addr: addr, Size: 1, Enum: cpu.MEM_FETCH_UNMAPPED})
	}
	if p.Prot&cpu.PROT_EXEC == 0 {
		return errors.WithStack(&cpu.MemError{Addr: addr, Size: 1, Enum: cpu.MEM_FETCH_PROT})
	}
	return nil
}

// exec fires the code hooks for addr and runs the Program there, if any.
func (c *Cpu) exec(addr uint64) error {
	if err := c.fetch(addr); err != nil {
		return err
	}
	c.RegWrite(c.Arch.PC, addr)
	c.OnBlock(addr, 4)
	c.OnCode(addr, 4)
	if c.stopped {
		return ErrStopped
	}
	if prog, ok := c.Programs[addr]; ok {
		return prog(c)
	}
	return nil
}

func (c *Cpu) Start(begin, until uint64) error {
	if c.closed {
		return errors.New("cpu closed")
	}
	c.stopped = false
	err := c.exec(begin)
	if err == ErrStopped {
		return nil
	}
	return err
}

func (c *Cpu) Stop() error {
	c.stopped = true
	return nil
}

func (c *Cpu) Stopped() bool {
	return c.stopped
}

func (c *Cpu) Close() error {
	c.closed = true
	return nil
}

// Call models a guest call to addr: arguments go in the Arch argument
// registers, the return address is saved in the link register or on the
// stack, and the return register is read back afterwards. A Program should
// return the error from Call unchanged so Stop unwinds it.
func (c *Cpu) Call(addr uint64, args ...uint64) (uint64, error) {
	a := c.Arch
	if len(args) > len(a.ArgRegs) {
		return 0, errors.Errorf("too many arguments: %d", len(args))
	}
	for i, v := range args {
		if err := c.RegWrite(a.ArgRegs[i], v); err != nil {
			return 0, err
		}
	}
	ret, _ := c.RegRead(a.PC)
	if a.LinkReg >= 0 {
		saved, _ := c.RegRead(a.LinkReg)
		defer c.RegWrite(a.LinkReg, saved)
		c.RegWrite(a.LinkReg, ret)
	} else {
		sp, _ := c.RegRead(a.SP)
		sp -= uint64(a.PtrSize())
		buf := make([]byte, a.PtrSize())
		a.Order.PutUint64(buf, ret)
		if err := c.MemWrite(sp, buf); err != nil {
			return 0, err
		}
		c.RegWrite(a.SP, sp)
		defer c.RegWrite(a.SP, sp+uint64(a.PtrSize()))
	}
	if err := c.exec(addr); err != nil {
		return 0, err
	}
	c.RegWrite(a.PC, ret)
	return c.RegRead(a.RetReg)
}

// ReadWord reads one pointer-sized value from guest memory.
func (c *Cpu) ReadWord(addr uint64) (uint64, error) {
	buf, err := c.MemRead(addr, uint64(c.Arch.PtrSize()))
	if err != nil {
		return 0, err
	}
	return c.Arch.Order.Uint64(buf), nil
}

// CallTable calls slot num of the ABI table whose base is in the Arch ABI
// register, the same way guest code indexes it.
func (c *Cpu) CallTable(num int, args ...uint64) (uint64, error) {
	base, err := c.RegRead(c.Arch.AbiReg)
	if err != nil {
		return 0, err
	}
	addr, err := c.ReadWord(base + uint64(num*c.Arch.PtrSize()))
	if err != nil {
		return 0, err
	}
	return c.Call(addr, args...)
}
