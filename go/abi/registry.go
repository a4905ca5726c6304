package abi

import (
	"encoding/binary"
	"reflect"
	"sort"

	"github.com/lunixbochs/argjoy"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/models"
)

// Capacity is the number of slots in the guest-visible ABI table.
const Capacity = 16

type Func struct {
	Num  int
	Name string
	Addr uint64

	fn reflect.Value
	in []reflect.Type
}

// Registry maps ABI call numbers to host entry addresses and Go handlers.
// It is filled before any image is loaded and only read afterwards.
type Registry struct {
	Argjoy argjoy.Argjoy

	table [Capacity]*Func
	names map[string]int
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]int)}
}

// Register inserts or replaces slot num. fn may be nil for an address-only
// entry that cannot be dispatched with Call.
func (r *Registry) Register(num int, name string, addr uint64, fn interface{}) error {
	if num < 0 || num >= Capacity {
		return models.LoadErrorf(models.AbiTableFull, uint64(num), name, "call number %d outside table of %d", num, Capacity)
	}
	f := &Func{Num: num, Name: name, Addr: addr}
	if fn != nil {
		val := reflect.ValueOf(fn)
		if val.Kind() != reflect.Func {
			return errors.Errorf("ABI function %q must be a func, got %T", name, fn)
		}
		typ := val.Type()
		f.fn = val
		f.in = make([]reflect.Type, typ.NumIn())
		for i := range f.in {
			f.in[i] = typ.In(i)
		}
	}
	if old := r.table[num]; old != nil && r.names[old.Name] == num {
		delete(r.names, old.Name)
	}
	r.table[num] = f
	r.names[name] = num
	return nil
}

func (r *Registry) Lookup(num int) (*Func, bool) {
	if num < 0 || num >= Capacity || r.table[num] == nil {
		return nil, false
	}
	return r.table[num], true
}

func (r *Registry) LookupName(name string) (*Func, bool) {
	num, ok := r.names[name]
	if !ok {
		return nil, false
	}
	return r.table[num], true
}

// Addr returns the entry address in slot num, or 0 for an empty slot.
func (r *Registry) Addr(num int) uint64 {
	if f, ok := r.Lookup(num); ok {
		return f.Addr
	}
	return 0
}

func (r *Registry) ResolveByName(name string) (uint64, error) {
	f, ok := r.LookupName(name)
	if !ok {
		return 0, models.LoadErrorf(models.UnresolvedAbiSymbol, 0, name, "no ABI function named %q", name)
	}
	return f.Addr, nil
}

// Call runs the handler in slot num. Arguments are raw register values,
// converted to the handler's parameter types by the registered argjoy codecs.
// Extra values are ignored. The handler's first result is returned if it
// converts to uint64.
func (r *Registry) Call(num int, args []uint64) (uint64, error) {
	f, ok := r.Lookup(num)
	if !ok {
		return 0, errors.Errorf("no ABI function in slot %d", num)
	}
	if !f.fn.IsValid() {
		return 0, errors.Errorf("ABI function %q has no host handler", f.Name)
	}
	if len(args) < len(f.in) {
		return 0, errors.Errorf("ABI function %q takes %d args, got %d", f.Name, len(f.in), len(args))
	}
	in, err := r.Argjoy.Convert(f.in, false, args[:len(f.in)])
	if err != nil {
		return 0, errors.Wrapf(err, "calling %s()", f.Name)
	}
	out := f.fn.Call(in)
	uint64Type := reflect.TypeOf(uint64(0))
	if len(out) > 0 && out[0].Type().ConvertibleTo(uint64Type) {
		return out[0].Convert(uint64Type).Uint(), nil
	}
	return 0, nil
}

// Table serializes the address table the guest receives, one 8-byte word per
// slot. Empty slots are zero.
func (r *Registry) Table(order binary.ByteOrder) []byte {
	buf := make([]byte, Capacity*8)
	for i, f := range r.table {
		if f != nil {
			order.PutUint64(buf[i*8:], f.Addr)
		}
	}
	return buf
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
	return names
}

func (r *Registry) Funcs() []*Func {
	var funcs []*Func
	for _, f := range r.table {
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	return funcs
}
