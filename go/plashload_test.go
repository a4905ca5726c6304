package plashload

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/console"
	"github.com/lunixbochs/plashload/go/image"
	"github.com/lunixbochs/plashload/go/loader/elftest"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/models/mock"
	"github.com/lunixbochs/plashload/go/snapshot"
)

// a position independent app importing puts and exit
func pieStore(t *testing.T) *image.Store {
	text := make([]byte, 0x200)
	copy(text[0x100:], "Hello from the zone\x00")
	b := elftest.Dyn(elf.EM_RISCV, 0x20, elftest.Prog{Vaddr: 0, Data: text, Memsz: 0x400})
	b.Dynsyms = []string{"puts", "exit"}
	b.Relocs = []elftest.Rel{
		{Off: 0x300, Sym: 1, Type: uint32(elf.R_RISCV_JUMP_SLOT)},
		{Off: 0x308, Sym: 2, Type: uint32(elf.R_RISCV_JUMP_SLOT)},
	}
	var buf bytes.Buffer
	if err := image.Pack(&buf, b.Build()); err != nil {
		t.Fatal(err)
	}
	return image.New(uint64(models.DefaultLayout.PlashStart), buf.Bytes())
}

func newPlashload(t *testing.T, out *bytes.Buffer) *Plashload {
	p, err := New(models.NewConfig(), console.New(out, false))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBootPipeline(t *testing.T) {
	var out bytes.Buffer
	p := newPlashload(t, &out)
	if err := p.LoadStore(pieStore(t), false, 0); err != nil {
		t.Fatal(err)
	}
	if p.Arch.Name != "riscv64" {
		t.Fatalf("picked arch %s", p.Arch.Name)
	}
	if p.Loaded.Entry != p.Zone.Base+0x20 {
		t.Fatalf("entry 0x%x", p.Loaded.Entry)
	}
	c := mock.New(p.Arch)
	c.Programs[p.Loaded.Entry] = func(c *mock.Cpu) error {
		base := p.Zone.Base
		puts, err := c.ReadWord(base + 0x300)
		if err != nil {
			return err
		}
		if _, err := c.Call(puts, base+0x100); err != nil {
			return err
		}
		exit, err := c.ReadWord(base + 0x308)
		if err != nil {
			return err
		}
		_, err = c.Call(exit, 42)
		return err
	}
	err := p.RunOn(c)
	if status, ok := errors.Cause(err).(models.ExitStatus); !ok || status != 42 {
		t.Fatalf("RunOn() = %v, want exit 42", err)
	}
	want := "Hello from the zone\n[ABI:Terminate] Shutdown...\n"
	if out.String() != want {
		t.Fatalf("output %q, want %q", out.String(), want)
	}
}

func TestDump(t *testing.T) {
	var out bytes.Buffer
	p := newPlashload(t, &out)
	if err := p.Dump(&bytes.Buffer{}); err == nil {
		t.Fatal("dumped before load")
	}
	if err := p.LoadStore(pieStore(t), false, 0); err != nil {
		t.Fatal(err)
	}
	var snap bytes.Buffer
	if err := p.Dump(&snap); err != nil {
		t.Fatal(err)
	}
	h, z, err := snapshot.Read(&snap)
	if err != nil {
		t.Fatal(err)
	}
	if h.Arch != "riscv64" || h.Entry != p.Loaded.Entry {
		t.Fatalf("header %+v", h)
	}
	if !bytes.Equal(z.Bytes(), p.Zone.Bytes()) {
		t.Fatal("snapshot zone differs")
	}
}

func TestLoadMultiApp(t *testing.T) {
	single := pieStore(t)
	blob, _ := single.Blob()
	var buf bytes.Buffer
	if err := image.PackApps(&buf, [][]byte{[]byte("junk"), blob}); err != nil {
		t.Fatal(err)
	}
	s := image.New(0, buf.Bytes())
	var out bytes.Buffer
	if err := newPlashload(t, &out).LoadStore(s, true, 1); err != nil {
		t.Fatal(err)
	}
	err := newPlashload(t, &out).LoadStore(s, true, 0)
	if models.KindOf(err) != models.MalformedElf {
		t.Fatalf("junk app: %v", err)
	}
}
