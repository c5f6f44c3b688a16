// Provides common mangashark error definitions.
package mangashark_errors

import "errors"

var (
	ErrUnitUnknown      = errors.New("mangashark: unknown content unit")
	ErrSectionUnknown   = errors.New("mangashark: no such window section")
	ErrSequenceBoundary = errors.New("mangashark: reached sequence boundary")
	ErrNoActiveSession  = errors.New("mangashark: no active reading session")
	ErrBadFraction      = errors.New("mangashark: position fraction out of [0,1]")
	ErrBadIndex         = errors.New("mangashark: last index out of range")
	ErrBadRecord        = errors.New("mangashark: bad progress record encoding")
	ErrClosed           = errors.New("mangashark: store is closed")
)
