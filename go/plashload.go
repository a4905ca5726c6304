package plashload

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/abi"
	"github.com/lunixbochs/plashload/go/arch"
	"github.com/lunixbochs/plashload/go/boot"
	"github.com/lunixbochs/plashload/go/console"
	"github.com/lunixbochs/plashload/go/image"
	"github.com/lunixbochs/plashload/go/loader"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/models/cpu"
	"github.com/lunixbochs/plashload/go/snapshot"
	"github.com/lunixbochs/plashload/go/zone"
)

// Plashload owns one boot: the zone, the ABI table and the loaded image.
type Plashload struct {
	Config   *models.Config
	Console  *console.Console
	Zone     *zone.Zone
	Registry *abi.Registry
	Host     *abi.Host

	Arch   *models.Arch
	Loaded *loader.Loaded
}

func New(config *models.Config, con *console.Console) (*Plashload, error) {
	l := config.Layout
	p := &Plashload{
		Config:   config,
		Console:  con,
		Zone:     zone.New(uint64(l.ExecZoneStart), uint64(l.MaxAppSize), nil),
		Registry: abi.NewRegistry(),
		Host:     abi.NewHost(con),
	}
	if err := p.Host.Install(p.Registry, uint64(l.HostStubStart)); err != nil {
		return nil, err
	}
	return p, nil
}

// Load places an ELF blob in the zone.
func (p *Plashload) Load(blob []byte) error {
	ld, err := loader.Load(blob, p.Zone, p.Registry)
	if err != nil {
		return err
	}
	a, ok := arch.ForMachine(ld.Machine)
	if !ok {
		return models.LoadErrorf(models.UnsupportedMachine, 0, "", "no CPU for %s", ld.Machine)
	}
	p.Arch, p.Loaded = a, ld
	if p.Config.Verbose {
		p.Console.Infof("[%s image, entry @ 0x%x]", a.Name, ld.Entry)
		for _, seg := range ld.Segments {
			p.Console.Infof("  segment %s", seg)
		}
		for _, f := range ld.Fixups {
			p.Console.Infof("  plt zone+0x%x -> %s @ 0x%x", f.Off, f.Name, f.Addr)
		}
	}
	return nil
}

// LoadStore loads the image from a store, app indexes a multi-app store and is
// ignored otherwise.
func (p *Plashload) LoadStore(s *image.Store, multi bool, app int) error {
	var blob []byte
	var err error
	if multi {
		blob, err = s.App(app)
	} else {
		blob, err = s.Blob()
	}
	if err != nil {
		return err
	}
	glog.V(1).Infof("image store at 0x%x: %d of %d bytes", s.Base, len(blob), s.Size())
	return p.Load(blob)
}

// Dump saves the loaded zone.
func (p *Plashload) Dump(w io.Writer) error {
	if p.Loaded == nil {
		return errors.New("nothing loaded")
	}
	return snapshot.Write(w, p.Arch.Name, p.Loaded.Entry, p.Zone)
}

// Run transfers control to the loaded image on the arch's CPU.
func (p *Plashload) Run() error {
	if p.Loaded == nil {
		return errors.New("nothing loaded")
	}
	c, err := p.Arch.Cpu.New()
	if err != nil {
		return errors.Wrap(err, "failed to create CPU")
	}
	defer c.Close()
	return p.RunOn(c)
}

// RunOn is Run with a caller-provided CPU.
func (p *Plashload) RunOn(c cpu.Cpu) error {
	entry := p.Loaded.Entry
	if p.Config.Verbose {
		off, _ := p.Zone.Offset(entry)
		mem, _ := p.Zone.Read(off, min(64, p.Zone.Size()-off))
		p.Console.Infof("[entry point @ 0x%x]", entry)
		p.Console.Printf("%s\n", p.disas(mem, entry))
		p.Console.Infof("==== Program output begins here. ====")
	}
	m := &boot.Machine{
		Cpu:      c,
		Arch:     p.Arch,
		Zone:     p.Zone,
		Registry: p.Registry,
		Host:     p.Host,
		Layout:   p.Config.Layout,
	}
	err := m.Transfer(entry)
	if _, ok := errors.Cause(err).(models.ExitStatus); err != nil && !ok && p.Config.Verbose {
		if regs, rerr := p.Arch.RegDump(c); rerr == nil {
			p.Console.Regs(regs)
		}
	}
	return err
}

func (p *Plashload) disas(mem []byte, addr uint64) string {
	if p.Arch.Dis != nil {
		if dis, err := p.Arch.Dis.Dis(mem, addr); err == nil && len(dis) > 0 {
			return Disas(dis)
		}
	}
	return fmt.Sprintf("0x%x: %s", addr, hex.EncodeToString(mem))
}

// Boot loads the single-app store s and runs it.
func Boot(config *models.Config, con *console.Console, s *image.Store) error {
	p, err := New(config, con)
	if err != nil {
		return err
	}
	if err := p.LoadStore(s, false, 0); err != nil {
		return err
	}
	return p.Run()
}
