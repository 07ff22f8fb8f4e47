package resolver

import "errors"

var (
	ErrUnreachable        = errors.New("version unreachable")
	ErrCyclicInheritance  = errors.New("cyclic inheritance")
	ErrMalformedManifest  = errors.New("malformed manifest")
	ErrInheritanceTooDeep = errors.New("inheritance chain too deep")
)
