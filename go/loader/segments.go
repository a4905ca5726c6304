package loader

import (
	"github.com/golang/glog"

	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/zone"
)

type placement struct {
	models.Segment
	zoneOff uint64
}

// LoadSegments copies every PT_LOAD segment into z and zero-fills the part of
// each one not backed by the file. A segment's zone offset is its vaddr minus
// bias. Every segment is checked before anything is written, so on error the
// zone is untouched.
func LoadSegments(img *ElfImage, z *zone.Zone, bias uint64) ([]models.Segment, error) {
	segs := img.Segments()
	blobSize := uint64(len(img.Blob()))
	places := make([]placement, 0, len(segs))
	for _, seg := range segs {
		if seg.Memsz < seg.Filesz {
			return nil, models.LoadErrorf(models.MalformedElf, seg.Off, "", "segment memsz 0x%x < filesz 0x%x", seg.Memsz, seg.Filesz)
		}
		if seg.Off > blobSize || seg.Filesz > blobSize-seg.Off {
			return nil, models.LoadErrorf(models.MalformedElf, seg.Off, "", "segment file range 0x%x+0x%x outside %d byte image", seg.Off, seg.Filesz, blobSize)
		}
		if seg.Vaddr < bias {
			return nil, models.LoadErrorf(models.SegmentOutOfBounds, seg.Vaddr, "", "segment vaddr 0x%x below zone base 0x%x", seg.Vaddr, bias)
		}
		off := seg.Vaddr - bias
		if !z.Fits(off, seg.Memsz) {
			return nil, models.LoadErrorf(models.SegmentOutOfBounds, off, "", "segment 0x%x+0x%x exceeds zone size 0x%x", off, seg.Memsz, z.Size())
		}
		places = append(places, placement{seg, off})
	}
	blob := img.Blob()
	for _, p := range places {
		glog.V(2).Infof("segment %s -> zone+0x%x", p.Segment, p.zoneOff)
		if err := z.Write(p.zoneOff, blob[p.Off:p.Off+p.Filesz]); err != nil {
			return nil, err
		}
		if err := z.Fill(p.zoneOff+p.Filesz, p.Memsz-p.Filesz, 0); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

// LoadText is the fallback for images without program headers: the .text
// section is copied to the start of the zone.
func LoadText(img *ElfImage, z *zone.Zone) (models.Segment, error) {
	text, err := img.Text()
	if err != nil {
		return models.Segment{}, err
	}
	size := uint64(len(text))
	if !z.Fits(0, size) {
		return models.Segment{}, models.LoadErrorf(models.SegmentOutOfBounds, 0, ".text", ".text is 0x%x bytes, zone holds 0x%x", size, z.Size())
	}
	if err := z.Write(0, text); err != nil {
		return models.Segment{}, err
	}
	sec := img.File.Section(".text")
	seg := models.Segment{Vaddr: z.Base, Off: sec.Offset, Filesz: size, Memsz: size}
	glog.V(2).Infof("legacy .text %s", seg)
	return seg, nil
}
