package netkit

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedPlatform = errors.New("proxy configuration not supported on this platform version")
	ErrCapabilityLookup    = errors.New("proxy capability lookup failed")
	ErrNoActiveNetwork     = errors.New("no active saved network")
	ErrInvalidProxy        = errors.New("invalid proxy")
)

// CapabilityError records which step of a capability call failed.
// It always matches ErrCapabilityLookup with errors.Is.
type CapabilityError struct {
	Op     string
	Reason error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Reason)
}

func (e *CapabilityError) Unwrap() []error {
	return []error{ErrCapabilityLookup, e.Reason}
}
