package policy

import "errors"

var (
	ErrInvalidPort     = errors.New("invalid port")
	ErrInvalidAddress  = errors.New("invalid address literal")
	ErrUnresolvedHost  = errors.New("unresolvable hostname")
	ErrInvalidRemap    = errors.New("malformed path remapping")
	ErrSearchExhausted = errors.New("path resolver search bound exceeded")
)
