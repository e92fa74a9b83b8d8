package genie

import (
	"errors"
	"fmt"
)

var (
	ErrNoProvider    = errors.New("genie: provider is required")
	ErrNoSignature   = errors.New("genie: signature is required")
	ErrNoAsker       = errors.New("genie: asker is required")
	ErrInvalidOutput = errors.New("genie: invalid reasoning output")
)

// OutputError reports a reasoning step whose model output could not be mapped
// onto the signature's output fields.
type OutputError struct {
	Signature string
	Raw       string
	Err       error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("genie: signature %s: %v", e.Signature, e.Err)
}

func (e *OutputError) Unwrap() []error {
	return []error{ErrInvalidOutput, e.Err}
}
