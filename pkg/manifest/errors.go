package manifest

import (
	"errors"
	"strings"
)

var (
	ErrUnknownFormat   = errors.New("unknown manifest format")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidManifest.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidManifest
}
