package inspect

import (
	"fmt"
	"os"

	"github.com/lunixbochs/plashload/go/abi"
	"github.com/lunixbochs/plashload/go/cmd"
	"github.com/lunixbochs/plashload/go/image"
	"github.com/lunixbochs/plashload/go/loader"
	"github.com/lunixbochs/plashload/go/zone"
)

func Main(args []string) {
	c := cmd.NewPlashCmd("<image>", "-multi apps.img")
	multi := c.Flags.Bool("multi", false, "image store uses the multi-app format")
	rest := c.Parse(args)
	if len(rest) != 1 {
		c.Usage()
		os.Exit(1)
	}
	store, err := image.Open(rest[0], uint64(c.Config.PlashStart))
	if err != nil {
		c.Exit(err)
	}
	defer store.Close()

	var apps [][]byte
	if *multi {
		if apps, err = store.Apps(); err != nil {
			c.Exit(err)
		}
	} else {
		blob, err := store.Blob()
		if err != nil {
			c.Exit(err)
		}
		apps = [][]byte{blob}
	}
	reg := abi.NewRegistry()
	if err := abi.NewHost(nil).Install(reg, uint64(c.Config.HostStubStart)); err != nil {
		c.Exit(err)
	}
	failed := false
	for i, blob := range apps {
		if len(apps) > 1 {
			c.Console.Infof("app %d: %d bytes", i, len(blob))
		}
		if err := Inspect(c, blob, reg); err != nil {
			c.Console.Fatal(err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// Inspect prints what loading blob would do without touching a zone.
func Inspect(c *cmd.PlashCmd, blob []byte, reg *abi.Registry) error {
	con := c.Console
	img, err := loader.NewElfImage(blob)
	if err != nil {
		return err
	}
	con.Printf("type:    %s\n", img.File.Type)
	con.Printf("machine: %s\n", img.Machine())
	con.Printf("entry:   0x%x\n", img.Entry())
	segs := img.Segments()
	if len(segs) == 0 {
		if sec := img.File.Section(".text"); sec != nil {
			con.Printf("legacy .text: off=0x%x size=0x%x\n", sec.Offset, sec.Size)
		}
	}
	for _, seg := range segs {
		con.Printf("PT_LOAD  %s\n", seg)
	}
	if img.Type() != loader.DYN {
		return nil
	}
	syms, err := img.DynamicSymbols()
	if err != nil {
		return err
	}
	relocs, err := img.PLTRelocs()
	if err != nil {
		return err
	}
	for _, r := range relocs {
		name := "?"
		if idx := r.Sym(); idx > 0 && int(idx) <= len(syms) {
			name = syms[idx-1].Name
		}
		target := "unresolved"
		if addr, err := reg.ResolveByName(name); err == nil {
			target = fmt.Sprintf("0x%x", addr)
		}
		con.Printf("PLT      off=0x%x type=%d %s -> %s\n", r.Off, r.Type(), name, target)
	}
	// full check against a scratch zone of the configured size
	z := zone.New(uint64(c.Config.ExecZoneStart), uint64(c.Config.MaxAppSize), img.ByteOrder())
	_, err = loader.ResolvePLT(img, z, reg)
	return err
}

func init() { cmd.Register("inspect", "print ELF layout and ABI imports of an image", Main) }
