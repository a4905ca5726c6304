package arch

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/abi"
	"github.com/lunixbochs/plashload/go/boot"
	"github.com/lunixbochs/plashload/go/models"
	"github.com/lunixbochs/plashload/go/zone"
)

func TestLookup(t *testing.T) {
	for _, m := range []elf.Machine{elf.EM_RISCV, elf.EM_AARCH64, elf.EM_X86_64} {
		a, ok := ForMachine(m)
		if !ok {
			t.Fatalf("no arch for %s", m)
		}
		byName, err := GetArch(a.Name)
		if err != nil || byName != a {
			t.Errorf("GetArch(%s) = %v, %v", a.Name, byName, err)
		}
	}
	if _, ok := ForMachine(elf.EM_386); ok {
		t.Error("found arch for EM_386")
	}
	if _, err := GetArch("pdp11"); err == nil {
		t.Error("found arch pdp11")
	}
}

// every register the boot path touches must be known to the arch
func TestRegs(t *testing.T) {
	for name, a := range archMap {
		known := make(map[int]bool)
		for _, enum := range a.Regs {
			known[enum] = true
		}
		used := append([]int{a.PC, a.SP, a.AbiReg, a.RetReg}, a.ArgRegs...)
		if a.LinkReg >= 0 {
			used = append(used, a.LinkReg)
		}
		for _, enum := range used {
			if !known[enum] {
				t.Errorf("%s: register %d missing from Regs", name, enum)
			}
		}
		if len(a.Ret) == 0 || len(a.Ret) > abi.StubStride {
			t.Errorf("%s: bad return stub %x", name, a.Ret)
		}
	}
}

// guest code that loads table[exit] from the ABI register and tail calls it
// with 7
var exitAsm = map[string]string{
	"arm64":  "ldr x16, [x7, #24]; mov x0, #7; br x16",
	"x86_64": "mov rax, [r9+24]; mov edi, 7; jmp rax",
}

// keystone has no RISC-V backend
var exitCode = map[string][]byte{
	// ld t0, 24(a7); li a0, 7; jr t0
	"riscv64": {0x83, 0xb2, 0x88, 0x01, 0x13, 0x05, 0x70, 0x00, 0x67, 0x80, 0x02, 0x00},
}

func guestCode(t *testing.T, a *models.Arch) []byte {
	if code, ok := exitCode[a.Name]; ok {
		return code
	}
	if a.Asm == nil {
		t.Fatalf("%s: no assembler and no exit code", a.Name)
	}
	code, err := a.Asm.Asm(exitAsm[a.Name], uint64(models.DefaultLayout.ExecZoneStart))
	if err != nil {
		t.Fatal(err)
	}
	return code
}

// the hand-written return stubs must match what the assembler produces
func TestRetStub(t *testing.T) {
	for name, a := range archMap {
		if a.Asm == nil {
			continue
		}
		t.Run(name, func(t *testing.T) {
			code, err := a.Asm.Asm("ret", 0)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(code, a.Ret) {
				t.Fatalf("Ret = %x, assembler gives %x", a.Ret, code)
			}
		})
	}
}

func transfer(t *testing.T, a *models.Arch, code []byte) (string, error) {
	layout := models.DefaultLayout
	var out bytes.Buffer
	host := abi.NewHost(&out)
	reg := abi.NewRegistry()
	if err := host.Install(reg, uint64(layout.HostStubStart)); err != nil {
		t.Fatal(err)
	}
	z := zone.New(uint64(layout.ExecZoneStart), uint64(layout.MaxAppSize), nil)
	z.Write(0, code)
	c, err := a.Cpu.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	err = boot.Transfer(c, a, z, reg, host, layout, z.Base)
	return out.String(), err
}

func TestUnicornExit(t *testing.T) {
	for name, a := range archMap {
		t.Run(name, func(t *testing.T) {
			out, err := transfer(t, a, guestCode(t, a))
			if status, ok := errors.Cause(err).(models.ExitStatus); !ok || status != 7 {
				t.Fatalf("Transfer() = %v, want exit 7", err)
			}
			if out != "[ABI:Terminate] Shutdown...\n" {
				t.Fatalf("output %q", out)
			}
		})
	}
}

func TestUnicornReturn(t *testing.T) {
	for name, a := range archMap {
		t.Run(name, func(t *testing.T) {
			_, err := transfer(t, a, a.Ret)
			if errors.Cause(err) != models.ErrGuestReturned {
				t.Fatalf("Transfer() = %v, want ErrGuestReturned", err)
			}
		})
	}
}
