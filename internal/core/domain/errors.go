package domain

import "errors"

// Error kinds shared by the scanning engine.
//
// Only ErrAdapterUnavailable is fatal: it stops the affected loop and is
// returned to the caller of the scheduler. The rest are absorbed into state.
var (
	ErrAdapterUnavailable = errors.New("radio adapter unavailable")
	ErrTransientRead      = errors.New("transient radio read error")
	ErrConnectionTimeout  = errors.New("connection attempt timed out")
	ErrConnectionRejected = errors.New("connection rejected")
)
