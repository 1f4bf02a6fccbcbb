// Package checkout moves the working copy of the server under test to a given revision.
package checkout

import "fmt"

// Controller puts the server's working copy at the revision named by tag.
type Controller interface {
	Checkout(tag string) error
}

// Error means the working copy could not be prepared or moved to the requested revision.
// A case whose checkout fails is reported as broken and the run continues.
type Error struct {
	Op  string
	Tag string
	Dir string
	Err error
}

func (e *Error) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("checkout of %q in %q failed during %s: %s", e.Tag, e.Dir, e.Op, e.Err)
	}
	return fmt.Sprintf("preparing %q failed during %s: %s", e.Dir, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// None is a Controller for runs against a server that is not kept in a repository. Tags
// are ignored.
type None struct{}

func (None) Checkout(string) error { return nil }
