package cpu

import (
	"github.com/pkg/errors"
)

// CodeCb, IntrCb and MemFaultCb are the callback shapes accepted by HookAdd.
type (
	CodeCb     = func(Cpu, uint64, uint32)
	IntrCb     = func(Cpu, uint32)
	MemFaultCb = func(Cpu, int, uint64, int, int64) bool
)

type hookInfo struct {
	htype int
	start uint64
	end   uint64
}

func (h *hookInfo) Type() int {
	return h.htype
}

// start > end means the hook covers the whole address space, same as unicorn
func (h *hookInfo) Contains(addr uint64) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type codeHook struct {
	hookInfo
	cb CodeCb
}

type intrHook struct {
	hookInfo
	cb IntrCb
}

type memFaultHook struct {
	hookInfo
	cb MemFaultCb
}

// Hooks is a hook table for CPU implementations that don't carry their own.
type Hooks struct {
	cpu Cpu

	code     []*codeHook
	block    []*codeHook
	intr     []*intrHook
	memFault []*memFaultHook
}

func NewHooks(cpu Cpu) *Hooks {
	return &Hooks{cpu: cpu}
}

func (h *Hooks) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (Hook, error) {
	info := hookInfo{htype, start, end}
	var hook Hook
	switch htype {
	case HOOK_BLOCK, HOOK_CODE:
		fn, ok := cb.(CodeCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for code hook: %T", cb)
		}
		hh := &codeHook{info, fn}
		if htype == HOOK_BLOCK {
			h.block = append(h.block, hh)
		} else {
			h.code = append(h.code, hh)
		}
		hook = hh

	case HOOK_INTR:
		fn, ok := cb.(IntrCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for intr hook: %T", cb)
		}
		hh := &intrHook{info, fn}
		h.intr, hook = append(h.intr, hh), hh

	case HOOK_MEM_ERR:
		fn, ok := cb.(MemFaultCb)
		if !ok {
			return nil, errors.Errorf("bad callback type for fault hook: %T", cb)
		}
		hh := &memFaultHook{info, fn}
		h.memFault, hook = append(h.memFault, hh), hh

	default:
		return nil, errors.Errorf("unknown hook type: %d", htype)
	}
	return hook, nil
}

func (h *Hooks) HookDel(hh Hook) error {
	switch v := hh.(type) {
	case *codeHook:
		h.code = removeCode(h.code, v)
		h.block = removeCode(h.block, v)
	case *intrHook:
		var tmp []*intrHook
		for _, o := range h.intr {
			if o != v {
				tmp = append(tmp, o)
			}
		}
		h.intr = tmp
	case *memFaultHook:
		var tmp []*memFaultHook
		for _, o := range h.memFault {
			if o != v {
				tmp = append(tmp, o)
			}
		}
		h.memFault = tmp
	default:
		return errors.Errorf("not a hook: %T", hh)
	}
	return nil
}

func removeCode(list []*codeHook, hh *codeHook) []*codeHook {
	var tmp []*codeHook
	for _, v := range list {
		if v != hh {
			tmp = append(tmp, v)
		}
	}
	return tmp
}

func (h *Hooks) OnBlock(addr uint64, size uint32) {
	for _, v := range h.block {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnCode(addr uint64, size uint32) {
	for _, v := range h.code {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnIntr(intno uint32) {
	for _, v := range h.intr {
		v.cb(h.cpu, intno)
	}
}

// OnFault returns true if any hook handled the fault.
func (h *Hooks) OnFault(access int, addr uint64, size int, val int64) bool {
	for _, v := range h.memFault {
		if v.Contains(addr) {
			if v.cb(h.cpu, access, addr, size, val) {
				return true
			}
		}
	}
	return false
}
