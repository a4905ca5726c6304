// Package snapshot saves and restores a loaded Execution Zone.
package snapshot

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/zone"
)

var MAGIC = "PLZS"

// largest zone Read will allocate
const MaxZoneSize = 0x10000000

type Header struct {
	// MAGIC ("PLZS")
	Magic   string `struc:"[4]byte"`
	Version uint32
	// target architecture name, right-null-padded
	Arch string `struc:"[32]byte"`
	// zone placement and capacity
	Base uint64
	Size uint64
	// absolute entry point
	Entry uint64
	// number of zone bytes stored, the rest is zero
	Used uint64
}

// Write saves z after a header describing it. Only the used prefix of the
// zone is stored.
func Write(w io.Writer, arch string, entry uint64, z *zone.Zone) error {
	used := z.Used()
	header := &Header{
		Magic:   MAGIC,
		Version: 1,
		Arch:    arch,
		Base:    z.Base,
		Size:    z.Size(),
		Entry:   entry,
		Used:    used,
	}
	if err := struc.PackWithOrder(w, header, binary.LittleEndian); err != nil {
		return errors.Wrap(err, "failed to pack header")
	}
	data, err := z.Read(0, used)
	if err != nil {
		return err
	}
	zw := snappy.NewBufferedWriter(w)
	if _, err := zw.Write(data); err != nil {
		return errors.Wrap(err, "failed to write zone")
	}
	return errors.WithStack(zw.Close())
}

// Read restores a zone saved by Write.
func Read(r io.Reader) (*Header, *zone.Zone, error) {
	var h Header
	if err := struc.UnpackWithOrder(r, &h, binary.LittleEndian); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unpack header")
	}
	if h.Magic != MAGIC {
		return nil, nil, errors.New("invalid snapshot magic")
	}
	if h.Size > MaxZoneSize {
		return nil, nil, errors.Errorf("snapshot zone size 0x%x exceeds 0x%x", h.Size, MaxZoneSize)
	}
	if h.Used > h.Size {
		return nil, nil, errors.Errorf("snapshot stores 0x%x bytes of a 0x%x byte zone", h.Used, h.Size)
	}
	h.Arch = strings.TrimRight(h.Arch, "\x00")
	data := make([]byte, h.Used)
	if _, err := io.ReadFull(snappy.NewReader(r), data); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read zone")
	}
	z := zone.New(h.Base, h.Size, nil)
	if err := z.Write(0, data); err != nil {
		return nil, nil, err
	}
	return &h, z, nil
}
