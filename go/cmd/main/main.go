package main

import (
	"github.com/lunixbochs/plashload/go/cmd"

	_ "github.com/lunixbochs/plashload/go/cmd/inspect"
	_ "github.com/lunixbochs/plashload/go/cmd/pack"
	_ "github.com/lunixbochs/plashload/go/cmd/run"
)

func main() { cmd.Main() }
