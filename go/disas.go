package plashload

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lunixbochs/plashload/go/models"
)

// Disas formats instructions one per line with their bytes right-aligned.
func Disas(dis []models.Ins) string {
	width := 0
	for _, ins := range dis {
		if n := len(ins.Bytes()); n > width {
			width = n
		}
	}
	var out []string
	for _, ins := range dis {
		pad := strings.Repeat(" ", (width-len(ins.Bytes()))*2)
		data := pad + hex.EncodeToString(ins.Bytes())
		out = append(out, fmt.Sprintf("0x%x: %s %s %s", ins.Addr(), data, ins.Mnemonic(), ins.OpStr()))
	}
	return strings.Join(out, "\n")
}
