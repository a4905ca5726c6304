package boot

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/plashload/go/console"
	"github.com/lunixbochs/plashload/go/models"
)

// Halt is the last stop for every boot error. It prints the diagnostic and
// returns the process exit code: the guest's own code after exit, 1 otherwise.
func Halt(con *console.Console, err error) int {
	if err == nil {
		return 0
	}
	if status, ok := errors.Cause(err).(models.ExitStatus); ok {
		return int(status)
	}
	con.Fatal(err)
	return 1
}
