package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExitStatus is returned when the guest leaves through the exit ABI call.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("exit %d", e)
}

var ErrGuestReturned = errors.New("guest returned from entry without calling exit")
