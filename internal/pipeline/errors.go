package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// DecodeError reports a payload that is not a decodable image. It is the
// client's fault and never leaves a partial result behind.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid image: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CapabilityFault reports an internal failure of the face locator or the
// emotion classifier. It is not retried.
type CapabilityFault struct {
	Op  string
	Err error
}

func (e *CapabilityFault) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CapabilityFault) Unwrap() error {
	return e.Err
}

// IsDecodeError tests if err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsCapabilityFault tests if err is or wraps a CapabilityFault.
func IsCapabilityFault(err error) bool {
	var cf *CapabilityFault
	return errors.As(err, &cf)
}

// fault wraps a capability error unless the call was cancelled.
func fault(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &CapabilityFault{Op: op, Err: err}
}
