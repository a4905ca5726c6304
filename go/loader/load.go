package loader

import (
	"debug/elf"

	"github.com/golang/glog"

	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/zone"
)

// Loaded describes an image after it was placed in a zone.
type Loaded struct {
	Type     int
	Machine  elf.Machine
	Entry    uint64
	Segments []models.Segment
	Fixups   []models.Fixup
	// loaded from .text because the image had no PT_LOAD segments
	Legacy bool
}

// Load parses blob and materializes it in z. Position independent images are
// placed at the zone base and have their PLT patched through res; static
// images must be linked for the zone address.
func Load(blob []byte, z *zone.Zone, res Resolver) (*Loaded, error) {
	glog.V(1).Infof("loading %d byte image into %s", len(blob), z)
	img, err := NewElfImage(blob)
	if err != nil {
		return nil, err
	}
	ld := &Loaded{Type: img.Type(), Machine: img.Machine()}
	switch ld.Type {
	case EXEC:
		if len(img.Segments()) == 0 {
			seg, err := LoadText(img, z)
			if err != nil {
				return nil, err
			}
			ld.Segments = []models.Segment{seg}
			ld.Legacy = true
		} else if ld.Segments, err = LoadSegments(img, z, z.Base); err != nil {
			return nil, err
		}
		ld.Entry = img.Entry()
	case DYN:
		// resolve before the zone is touched so a missing import leaves it clean
		if ld.Fixups, err = ResolvePLT(img, z, res); err != nil {
			return nil, err
		}
		if ld.Segments, err = LoadSegments(img, z, 0); err != nil {
			return nil, err
		}
		if err := ApplyFixups(z, ld.Fixups); err != nil {
			return nil, err
		}
		ld.Entry = z.Base + img.Entry()
	default:
		return nil, models.LoadErrorf(models.UnsupportedElfType, 0, "", "ELF type %s", img.File.Type)
	}
	if !z.Contains(ld.Entry) {
		return nil, models.LoadErrorf(models.EntryOutOfBounds, ld.Entry, "", "entry 0x%x outside zone 0x%x-0x%x", ld.Entry, z.Base, z.End())
	}
	glog.V(1).Infof("loaded %s image, %d segments, %d fixups, entry 0x%x", img.File.Type, len(ld.Segments), len(ld.Fixups), ld.Entry)
	return ld, nil
}
