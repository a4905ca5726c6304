package run

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	plashload "github.com/lunixbochs/plashload/go"
	"github.com/lunixbochs/plashload/go/console"
	"github.com/lunixbochs/plashload/go/loader/elftest"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/snapshot"
)

func TestDumpZone(t *testing.T) {
	var out bytes.Buffer
	p, err := plashload.New(models.NewConfig(), console.New(&out, false))
	if err != nil {
		t.Fatal(err)
	}
	code := []byte{0x13, 0x05, 0x70, 0x00}
	b := elftest.Exec(elf.EM_RISCV, p.Zone.Base, elftest.Prog{Vaddr: p.Zone.Base, Data: code})
	if err := p.Load(b.Build()); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "zone.snap")
	if err := dumpZone(p, path); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	h, z, err := snapshot.Read(f)
	if err != nil {
		t.Fatal(err)
	}
	if h.Arch != "riscv64" || h.Entry != p.Zone.Base {
		t.Errorf("bad header: %+v", h)
	}
	if !bytes.Equal(z.Bytes(), p.Zone.Bytes()) {
		t.Fatal("snapshot differs from the loaded zone")
	}
}
