package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type Status int

const (
	StatusOK Status = iota
	StatusRejected
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	default:
		return "fatal"
	}
}

// Outcome is the result of a write: accepted, rejected by a constraint or
// business rule, or failed for another reason (e.g., connection lost).
type Outcome struct {
	Status Status
	Reason string
	Cause  error
}

func Ok() Outcome {
	return Outcome{Status: StatusOK}
}

func Rejected(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

func Fatal(cause error) Outcome {
	return Outcome{Status: StatusFatal, Reason: cause.Error(), Cause: cause}
}

func (o Outcome) Accepted() bool {
	return o.Status == StatusOK
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Status.String()
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Reason)
}

// ErrRejected marks errors that are constraint or business-rule rejections.
var ErrRejected = errors.New("rejected")

// Reject returns an error marked as a rejection.
func Reject(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrRejected)
}

// Classify converts err into an outcome. isRejection recognizes the
// backend's constraint violation errors; errors marked with ErrRejected are
// always rejections.
func Classify(err error, isRejection func(error) bool) Outcome {
	if err == nil {
		return Ok()
	}
	if errors.Is(err, ErrRejected) || (isRejection != nil && isRejection(err)) {
		return Rejected(err.Error())
	}
	return Fatal(err)
}

// ProvisionError is returned when a schema object cannot be created.
type ProvisionError struct {
	Schema string
	Cause  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Schema, e.Cause)
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

func IsProvisionError(err error) bool {
	var pe *ProvisionError
	return errors.As(err, &pe)
}
