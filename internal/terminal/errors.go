package terminal

import "errors"

// Sentinel errors for the terminal package.
var (
	// ErrInvalidSize is returned for dimensions smaller than one cell or
	// larger than MaxSize.
	ErrInvalidSize = errors.New("invalid terminal size")
)
