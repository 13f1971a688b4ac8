package cave

import (
	"errors"
	"fmt"
)

// Configuration errors. Returned (wrapped) before any work is done.
var (
	ErrInvalidNodeCount    = errors.New("invalid node count")
	ErrInvalidSpacing      = errors.New("invalid node spacing")
	ErrInvalidRadius       = errors.New("invalid influence radius")
	ErrInvalidSampleRate   = errors.New("invalid samples per unit")
	ErrInvalidSurfaceLevel = errors.New("surface level outside density range")
	ErrInvalidNoise        = errors.New("invalid noise settings")
	ErrInvalidWalk         = errors.New("invalid walk settings")
)

// InvariantError reports a programmer error detected inside the pipeline,
// such as a grid coordinate outside the allocated sample space.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cave: invariant violated in %s: %s", e.Op, e.Detail)
}

// fault panics with an InvariantError. Generate recovers it into a returned error.
func fault(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}
