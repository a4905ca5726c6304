// Package zone owns the Execution Zone: the fixed-address, fixed-capacity
// window guest code is copied into and executed from. Every read and write
// is validated against the zone capacity; no other package does address
// arithmetic on the zone.
package zone

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type RangeError struct {
	Off, Size, Cap uint64
	Write          bool
}

func (r *RangeError) Error() string {
	op := "read"
	if r.Write {
		op = "write"
	}
	return fmt.Sprintf("zone %s out of range: 0x%x+0x%x > 0x%x", op, r.Off, r.Size, r.Cap)
}

type Zone struct {
	Base  uint64
	Order binary.ByteOrder

	data []byte
}

func New(base, size uint64, order binary.ByteOrder) *Zone {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Zone{Base: base, Order: order, data: make([]byte, size)}
}

func (z *Zone) Size() uint64 {
	return uint64(len(z.data))
}

func (z *Zone) End() uint64 {
	return z.Base + z.Size()
}

// Fits reports whether [off, off+size) lies inside the zone, without overflow.
func (z *Zone) Fits(off, size uint64) bool {
	end := off + size
	return end >= off && end <= z.Size()
}

// Contains reports whether the absolute address addr is inside the zone.
func (z *Zone) Contains(addr uint64) bool {
	return addr >= z.Base && addr < z.End()
}

// Offset converts an absolute address to a zone offset.
func (z *Zone) Offset(addr uint64) (uint64, bool) {
	if !z.Contains(addr) {
		return 0, false
	}
	return addr - z.Base, true
}

func (z *Zone) Addr(off uint64) uint64 {
	return z.Base + off
}

func (z *Zone) check(off, size uint64, write bool) error {
	if !z.Fits(off, size) {
		return errors.WithStack(&RangeError{Off: off, Size: size, Cap: z.Size(), Write: write})
	}
	return nil
}

func (z *Zone) Write(off uint64, p []byte) error {
	if err := z.check(off, uint64(len(p)), true); err != nil {
		return err
	}
	copy(z.data[off:], p)
	return nil
}

// Fill sets size bytes at off to b.
func (z *Zone) Fill(off, size uint64, b byte) error {
	if err := z.check(off, size, true); err != nil {
		return err
	}
	region := z.data[off : off+size]
	for i := range region {
		region[i] = b
	}
	return nil
}

func (z *Zone) ReadInto(p []byte, off uint64) error {
	if err := z.check(off, uint64(len(p)), false); err != nil {
		return err
	}
	copy(p, z.data[off:])
	return nil
}

func (z *Zone) Read(off, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := z.ReadInto(p, off); err != nil {
		return nil, err
	}
	return p, nil
}

func (z *Zone) ReadUint(off uint64, size int) (uint64, error) {
	var buf [8]byte
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	if err := z.ReadInto(buf[:size], off); err != nil {
		return 0, err
	}
	return UnpackUint(z.Order, size, buf[:size])
}

func (z *Zone) WriteUint(off uint64, size int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(z.Order, size, buf[:], val); err != nil {
		return err
	}
	return z.Write(off, buf[:size])
}

// Bytes returns a copy of the zone contents.
func (z *Zone) Bytes() []byte {
	return append([]byte(nil), z.data...)
}

// Used returns the length of the zone up to its last nonzero byte.
func (z *Zone) Used() uint64 {
	return uint64(len(bytes.TrimRight(z.data, "\x00")))
}

func (z *Zone) Reset() {
	for i := range z.data {
		z.data[i] = 0
	}
}

func (z *Zone) String() string {
	return fmt.Sprintf("zone 0x%x-0x%x", z.Base, z.End())
}
