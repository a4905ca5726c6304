package pack

import (
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/cmd"
	"github.com/lunixbochs/plashload/go/image"
)

func Main(args []string) {
	c := cmd.NewPlashCmd("<elf> [elf...]", "-o plash.img hello.elf")
	out := c.Flags.String("o", "plash.img", "output image")
	multi := c.Flags.Bool("multi", false, "write the multi-app format")
	rest := c.Parse(args)
	if len(rest) == 0 || len(rest) > 1 && !*multi {
		c.Usage()
		os.Exit(1)
	}
	if err := Pack(*out, rest, *multi); err != nil {
		c.Exit(err)
	}
}

// Pack writes the ELF files at paths into an image store file.
func Pack(out string, paths []string, multi bool) error {
	var apps [][]byte
	for _, path := range paths {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.WithStack(err)
		}
		apps = append(apps, data)
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.WithStack(err)
	}
	if multi {
		err = image.PackApps(f, apps)
	} else {
		err = image.Pack(f, apps[0])
	}
	if err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

func init() { cmd.Register("pack", "build an image store from ELF files", Main) }
