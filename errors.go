package lasso

import "errors"

// Sentinel errors for the transport-neutral failure codes named in
// spec.md 4.6, plus the construction-time errors raised by
// registration and the memory planner.
var (
	ErrIllegalArgument = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("write to read-only cell")
	ErrBadAddress       = errors.New("unknown cell index")
	ErrNotSupported     = errors.New("unknown type or opcode")
	ErrIOError          = errors.New("transport i/o error")
	ErrNoData           = errors.New("no data available")
	ErrNoSpace          = errors.New("no space for another in-flight frame")
	ErrOverflow         = errors.New("destination buffer overrun")
	ErrIllegalSequence  = errors.New("illegal byte sequence")
	ErrCancelled        = errors.New("operation cancelled")
	ErrBusy             = errors.New("transport busy, retry next tick")

	ErrOutOfMemory = errors.New("memory allocation failed at registration")
)

// Errno maps a sentinel error to the signed errno-like value carried
// in a command reply (spec.md 4.6 "Reply shape"): 0 means success,
// any positive value an error. Unknown errors map to a generic
// positive value rather than panicking, since a reply must always be
// formattable. Exported so pkg/interp and pkg/wire can render a
// reply's failure code without duplicating the table.
func Errno(err error) int32 {
	switch err {
	case nil:
		return 0
	case ErrIllegalArgument:
		return 1
	case ErrPermissionDenied:
		return 2
	case ErrBadAddress:
		return 3
	case ErrNotSupported:
		return 4
	case ErrIOError:
		return 5
	case ErrNoData:
		return 6
	case ErrNoSpace:
		return 7
	case ErrOverflow:
		return 8
	case ErrIllegalSequence:
		return 9
	case ErrCancelled:
		return 10
	case ErrBusy:
		return 11
	default:
		return 127
	}
}
