package abi

import (
	"fmt"
	"io"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"
)

const (
	SysHello   = 1
	SysPutchar = 2
	SysExit    = 3
	SysPuts    = 4
)

// StubStride is the spacing between host entry stubs.
const StubStride = 16

const maxString = 4096

func StubAddr(base uint64, num int) uint64 {
	return base + uint64(num)*StubStride
}

// MemReader is the guest memory view host functions read pointers through.
type MemReader interface {
	MemRead(addr, size uint64) ([]byte, error)
}

// Host is the standard set of functions exposed to loaded applications.
type Host struct {
	Out io.Writer
	Mem MemReader
	// called by Exit to halt the guest
	Stop func() error

	Exited bool
	Status int
}

func NewHost(out io.Writer) *Host {
	return &Host{Out: out}
}

// Install registers the standard functions in r with entry stubs starting at
// stubBase, and the codecs they need.
func (h *Host) Install(r *Registry, stubBase uint64) error {
	r.Argjoy.Register(h.argCodec)
	r.Argjoy.Register(argjoy.IntToInt)
	funcs := []struct {
		num  int
		name string
		fn   interface{}
	}{
		{SysHello, "hello", h.Hello},
		{SysPutchar, "putchar", h.Putchar},
		{SysExit, "exit", h.Exit},
		{SysPuts, "puts", h.Puts},
	}
	for _, f := range funcs {
		if err := r.Register(f.num, f.name, StubAddr(stubBase, f.num), f.fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) argCodec(arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		if s, ok := arg.(*string); ok {
			str, err := h.ReadString(reg)
			if err != nil {
				return err
			}
			*s = str
			return nil
		}
	}
	return argjoy.NoMatch
}

// ReadString reads a NUL terminated string from guest memory.
func (h *Host) ReadString(addr uint64) (string, error) {
	if h.Mem == nil {
		return "", errors.New("no guest memory attached")
	}
	var s []byte
	for i := uint64(0); i < maxString; i++ {
		b, err := h.Mem.MemRead(addr+i, 1)
		if err != nil {
			return "", errors.Wrapf(err, "reading string at 0x%x", addr)
		}
		if b[0] == 0 {
			return string(s), nil
		}
		s = append(s, b[0])
	}
	return "", errors.Errorf("string at 0x%x longer than %d bytes", addr, maxString)
}

func (h *Host) Hello() {
	fmt.Fprintln(h.Out, "[ABI:Hello] Hello, Apps!")
}

func (h *Host) Putchar(c int) {
	h.Out.Write([]byte{byte(c)})
}

func (h *Host) Puts(s string) {
	fmt.Fprintln(h.Out, s)
}

func (h *Host) Exit(code int) {
	fmt.Fprintln(h.Out, "[ABI:Terminate] Shutdown...")
	h.Exited = true
	h.Status = code
	if h.Stop != nil {
		h.Stop()
	}
}
