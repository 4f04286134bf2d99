package nn

import "fmt"

// batchTooLargeError signals a batch exceeding the arena's configured
// maximum. Rejected before any device work.
type batchTooLargeError struct{ n, max int }

func (e batchTooLargeError) Error() string {
	return fmt.Sprintf("batch size %d exceeds configured maximum %d", e.n, e.max)
}

// ErrBatchTooLarge constructs a batchTooLargeError.
func ErrBatchTooLarge(n, max int) error { return batchTooLargeError{n: n, max: max} }

// IsBatchTooLarge reports whether err is a capacity violation.
func IsBatchTooLarge(err error) bool {
	_, ok := err.(batchTooLargeError)
	return ok
}

// invalidMoveError signals a move identifier outside the policy vocabulary.
type invalidMoveError struct{ id uint16 }

func (e invalidMoveError) Error() string {
	return fmt.Sprintf("move id %d outside policy vocabulary", e.id)
}

// ErrInvalidMove constructs an invalidMoveError.
func ErrInvalidMove(id uint16) error { return invalidMoveError{id: id} }

// IsInvalidMove reports whether err indicates a bad move identifier.
func IsInvalidMove(err error) bool {
	_, ok := err.(invalidMoveError)
	return ok
}

// tooManyMovesError signals a position requesting more move probabilities
// than one result row can carry.
type tooManyMovesError struct{ n, max int }

func (e tooManyMovesError) Error() string {
	return fmt.Sprintf("position carries %d moves, limit %d", e.n, e.max)
}

// ErrTooManyMoves constructs a tooManyMovesError.
func ErrTooManyMoves(n, max int) error { return tooManyMovesError{n: n, max: max} }

// IsTooManyMoves reports whether err indicates an oversized move list.
func IsTooManyMoves(err error) bool {
	_, ok := err.(tooManyMovesError)
	return ok
}

// deviceError wraps a device/runtime failure during graph execution. The
// owning instance is unusable afterward.
type deviceError struct {
	op  string
	err error
}

func (e deviceError) Error() string { return "device failure in " + e.op + ": " + e.err.Error() }
func (e deviceError) Unwrap() error { return e.err }

// IsDeviceFailure reports whether err is a fatal device execution error.
func IsDeviceFailure(err error) bool {
	_, ok := err.(deviceError)
	return ok
}

// failedInstanceError is returned for evaluations attempted after a device
// failure poisoned the instance.
type failedInstanceError struct{}

func (failedInstanceError) Error() string {
	return "instance failed a previous evaluation and must be replaced"
}

// ErrFailedInstance constructs a failedInstanceError.
func ErrFailedInstance() error { return failedInstanceError{} }

// IsFailedInstance reports whether err indicates a poisoned instance.
func IsFailedInstance(err error) bool {
	_, ok := err.(failedInstanceError)
	return ok
}
