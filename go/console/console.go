// Package console writes guest output and loader diagnostics to the terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"github.com/lunixbochs/plashload/go/models"
)

var (
	chErr  = ansi.ColorCode("red+b")
	chInfo = ansi.ColorCode("cyan")
	chReg  = ansi.ColorCode("default+b")
	chDim  = ansi.ColorCode("black+h")
)

type Console struct {
	Out   io.Writer
	Color bool
}

// Stdout returns a console on the process stdout, colored only when it is a
// terminal and color is requested.
func Stdout(color bool) *Console {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &Console{Out: colorable.NewColorableStdout(), Color: color && tty}
}

func New(out io.Writer, color bool) *Console {
	return &Console{Out: out, Color: color}
}

func (c *Console) paint(s, color string) string {
	if !c.Color {
		return s
	}
	return color + s + ansi.Reset
}

// Write passes guest output through unchanged.
func (c *Console) Write(p []byte) (int, error) {
	return c.Out.Write(p)
}

func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Console) Infof(format string, args ...interface{}) {
	fmt.Fprintln(c.Out, c.paint(fmt.Sprintf(format, args...), chInfo))
}

// Fatal prints the halt diagnostic for err: the error kind, the offending
// offset and name when known, then the message.
func (c *Console) Fatal(err error) {
	le, ok := models.AsLoadError(err)
	if !ok {
		fmt.Fprintf(c.Out, "%s %v\n", c.paint("[plashload] fatal:", chErr), err)
		return
	}
	parts := []string{c.paint("[plashload] "+le.Kind.String(), chErr)}
	if le.Off != 0 {
		parts = append(parts, fmt.Sprintf("off=0x%x", le.Off))
	}
	if le.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%s", le.Name))
	}
	fmt.Fprintf(c.Out, "%s: %v\n", strings.Join(parts, " "), err)
}

// Regs prints a register dump, four per line.
func (c *Console) Regs(regs []models.RegVal) {
	var line []string
	for i, r := range regs {
		name := fmt.Sprintf("%4s", r.Name)
		val := fmt.Sprintf("0x%016x", r.Val)
		if r.Val == 0 {
			val = c.paint(val, chDim)
		}
		line = append(line, c.paint(name, chReg)+" "+val)
		if len(line) == 4 || i == len(regs)-1 {
			fmt.Fprintln(c.Out, strings.Join(line, "  "))
			line = line[:0]
		}
	}
}
