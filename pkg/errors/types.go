package errors

import (
	"fmt"
)

// ErrNoBaseSnapshot is returned when the destination volume has no snapshot
// to use as a structural base. Recovering requires seeding an initial
// snapshot out-of-band, so callers treat it as fatal.
var ErrNoBaseSnapshot = New("need at least one base snapshot to start from")

// InvalidSnapshotName represents a directory entry that can't be interpreted
// as a snapshot because its name isn't a calendar date.
type InvalidSnapshotName struct {
	Name string
	Dir  string
}

func (err InvalidSnapshotName) Error() string {
	return fmt.Sprintf("%q in %q is not a snapshot date (expected YYYY-MM-DD)",
		err.Name, err.Dir)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}
