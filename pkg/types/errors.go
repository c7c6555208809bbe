package types

import "errors"

var (
	// ErrConfiguration marks a schema/engine mismatch, resolution must
	// abort instead of dropping the facet.
	ErrConfiguration = errors.New("configuration error")
	// ErrCapability marks a backing store that cannot evaluate a required
	// primitive, raised in strict mode only.
	ErrCapability = errors.New("backing store capability missing")
)
