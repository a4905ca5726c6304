package loader

import (
	"github.com/golang/glog"

	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/zone"
)

// Resolver maps an imported function name to its ABI entry address.
type Resolver interface {
	ResolveByName(name string) (uint64, error)
}

const slotSize = 8

// ResolvePLT checks and resolves every .rela.plt entry without touching the
// zone. Relocation offsets are zone offsets.
func ResolvePLT(img *ElfImage, z *zone.Zone, res Resolver) ([]models.Fixup, error) {
	syms, err := img.DynamicSymbols()
	if err != nil {
		return nil, err
	}
	relocs, err := img.PLTRelocs()
	if err != nil {
		return nil, err
	}
	jumpSlot := img.JumpSlot()
	fixups := make([]models.Fixup, 0, len(relocs))
	for _, r := range relocs {
		if r.Type() != jumpSlot {
			return nil, models.LoadErrorf(models.UnsupportedRelocation, r.Off, "", "relocation type %d, only JUMP_SLOT (%d) is supported", r.Type(), jumpSlot)
		}
		idx := r.Sym()
		if idx == 0 || int(idx) > len(syms) {
			return nil, models.LoadErrorf(models.MalformedElf, r.Off, "", "relocation symbol %d outside %d dynamic symbols", idx, len(syms))
		}
		name := syms[idx-1].Name
		addr, err := res.ResolveByName(name)
		if err != nil {
			return nil, models.LoadErrorf(models.UnresolvedAbiSymbol, r.Off, name, "no ABI function for %q", name)
		}
		if !z.Fits(r.Off, slotSize) {
			return nil, models.LoadErrorf(models.RelocationOutOfBounds, r.Off, name, "slot 0x%x outside zone size 0x%x", r.Off, z.Size())
		}
		fixups = append(fixups, models.Fixup{Reloc: r, Name: name, Addr: addr})
	}
	return fixups, nil
}

// PatchPLT writes the resolved address of each import into its GOT slot.
// Nothing is written unless every entry resolves.
func PatchPLT(img *ElfImage, z *zone.Zone, res Resolver) ([]models.Fixup, error) {
	fixups, err := ResolvePLT(img, z, res)
	if err != nil {
		return nil, err
	}
	if err := ApplyFixups(z, fixups); err != nil {
		return nil, err
	}
	return fixups, nil
}

// ApplyFixups writes fixups returned by ResolvePLT.
func ApplyFixups(z *zone.Zone, fixups []models.Fixup) error {
	for _, f := range fixups {
		glog.V(2).Infof("plt zone+0x%x %s -> 0x%x", f.Off, f.Name, f.Addr)
		if err := z.WriteUint(f.Off, slotSize, f.Addr); err != nil {
			return err
		}
	}
	return nil
}
