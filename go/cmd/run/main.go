package run

import (
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	plashload "github.com/lunixbochs/plashload/go"
	"github.com/lunixbochs/plashload/go/cmd"
	"github.com/lunixbochs/plashload/go/image"
)

func Main(args []string) {
	c := cmd.NewPlashCmd("<image>", "-v plash.img")
	multi := c.Flags.Bool("multi", false, "image store uses the multi-app format")
	app := c.Flags.Int("app", 0, "app index in a multi-app store")
	dump := c.Flags.String("dump", "", "save a snapshot of the loaded zone to <file>")
	noexec := c.Flags.Bool("noexec", false, "stop after loading")
	rest := c.Parse(args)
	if len(rest) != 1 {
		c.Usage()
		os.Exit(1)
	}
	defer glog.Flush()

	store, err := image.Open(rest[0], uint64(c.Config.PlashStart))
	if err != nil {
		c.Exit(err)
	}
	defer store.Close()
	p, err := plashload.New(c.Config, c.Console)
	if err != nil {
		c.Exit(err)
	}
	if err := p.LoadStore(store, *multi, *app); err != nil {
		c.Exit(err)
	}
	if *dump != "" {
		if err := dumpZone(p, *dump); err != nil {
			c.Exit(err)
		}
	}
	if *noexec {
		return
	}
	c.Exit(p.Run())
}

func dumpZone(p *plashload.Plashload, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := p.Dump(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

func init() { cmd.Register("run", "load an image and execute it", Main) }
