package inject

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ConnectError means the injector could not open a TCP connection to the server: it was
// refused, timed out or unreachable. A reset while connecting is not a ConnectError. Write
// errors other than a reset or broken pipe are reported separately, wrapped with the
// target address.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to %s: %s", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// isPeerReset reports whether err is what a write returns once a server has dropped a
// connection it did not like: a reset, a broken pipe, or the closed-connection error that
// follows them.
func isPeerReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed)
}
