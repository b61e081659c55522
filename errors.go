// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gc

import (
	"fmt"

	"github.com/pkg/errors"
)

// The error kinds in §7 are all fatal to the process: there is no
// recovery path, only a trap. Normal operation of handshake/shade/trace
// returns no error at all; these sentinels exist so trap sites can be
// identified with errors.Is instead of string matching.
var (
	// ErrDoubleResign is raised by a second call to mutator_resign on
	// the same session, or any handshake after resignation.
	ErrDoubleResign = errors.New("gc: session resigned twice or used after resignation")

	// ErrGreyUnderDelete is raised when the sweep pass finds an object
	// grey under a k that has already reached mask_for_deleting: the
	// three-cycle stability window (§4.1) guarantees this cannot happen
	// for a correctly-behaving mutator.
	ErrGreyUnderDelete = errors.New("gc: object grey under a deleting color bit")

	// ErrRefcountUnderflow is raised if a Session's reference count
	// would drop below zero.
	ErrRefcountUnderflow = errors.New("gc: session refcount underflow")
)

// trap reports a fatal invariant violation and terminates the process.
// It is the typed analogue of the teacher's throw(msg string) used
// throughout mgc.go and mbarrier.go.
func trap(err error) {
	panic(err)
}

// trapf wraps a sentinel with call-site context before trapping.
func trapf(sentinel error, format string, args ...any) {
	trap(errors.Wrap(sentinel, fmt.Sprintf(format, args...)))
}
