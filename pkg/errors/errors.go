// Package errors provides the error taxonomy used across the GMWM engine.
//
// Errors fall into a small set of categories, each backed by a sentinel so callers
// can branch with errors.Is regardless of how deeply an error was wrapped:
//
//   - ErrInvalidParameter: a component parameter lies outside its admissible domain
//   - ErrDimensionMismatch: theta, scales, wavelet variance or weighting matrix disagree in size
//   - ErrSingularWeighting: a weighting matrix (or information matrix) cannot be inverted
//   - ErrNonConvergence: the outer re-weighting loop hit its iteration cap
//   - ErrEmptyData, ErrNotFitted: input and lifecycle misuse
//
// Typed errors (ParameterError, DimensionError, ValueError, ModelError, NotFittedError,
// ValidationError) carry structured context and unwrap to their sentinel.
//
// Example usage:
//
//	wv, err := m.WaveletVariance(theta, scales)
//	if errors.Is(err, errors.ErrInvalidParameter) {
//		var pe *errors.ParameterError
//		if errors.As(err, &pe) {
//			fmt.Println(pe.Component, pe.Name)
//		}
//	}
//
// Wrapping helpers delegate to github.com/cockroachdb/errors so that wrapped errors
// keep stack traces (printed with %+v).
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

const prefix = "gmwm"

// Sentinel errors.
var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSingularWeighting = errors.New("singular weighting matrix")
	ErrNonConvergence    = errors.New("no convergence")
	ErrEmptyData         = errors.New("empty data")
	ErrNotFitted         = errors.New("not fitted")

	// ErrSingularInformation means D' omega D at the estimate cannot be
	// inverted, typically because a parameter is not identified there.
	ErrSingularInformation = errors.New("singular information matrix")
)

// New creates an error with a stack trace.
func New(msg string) error {
	return errors.New(msg)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// Wrap annotates err with msg. Returns nil when err is nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. Returns nil when err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// ParameterError reports a component parameter outside its admissible domain.
type ParameterError struct {
	Op        string
	Component string // component label, e.g. "AR1"
	Name      string // parameter name, e.g. "phi"
	Index     int    // position in theta
	Value     float64
	Reason    string
}

// NewParameterError creates a ParameterError.
func NewParameterError(op, component, name string, index int, value float64, reason string) *ParameterError {
	return &ParameterError{
		Op:        op,
		Component: component,
		Name:      name,
		Index:     index,
		Value:     value,
		Reason:    reason,
	}
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s: %s.%s = %g (theta[%d]) %s: %v",
		prefix, e.Op, e.Component, e.Name, e.Value, e.Index, e.Reason, ErrInvalidParameter)
}

// Unwrap returns ErrInvalidParameter.
func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// DimensionError reports a size disagreement between inputs.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s: expected %d, got %d (axis %d): %v",
		prefix, e.Op, e.Expected, e.Got, e.Axis, ErrDimensionMismatch)
}

// Unwrap returns ErrDimensionMismatch.
func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// ValueError reports an invalid argument value that is not a model parameter.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// ModelError is a failure inside an estimation step, wrapping its cause.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError.
func NewModelError(op, message string, err error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ModelError) Unwrap() error { return e.Err }

// NotFittedError is returned when a result is requested before fitting.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: call Fit before %s: %v", prefix, e.ModelName, e.Method, ErrNotFitted)
}

// Unwrap returns ErrNotFitted.
func (e *NotFittedError) Unwrap() error { return ErrNotFitted }

// ValidationError reports a configuration field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed for %s (%v): %s", prefix, e.Field, e.Value, e.Message)
}

// Recover converts a panic raised below op into an error stored in *err.
// gonum/mat signals dimension problems by panicking; estimation entry points
// defer Recover so those surface as ordinary errors.
//
//	func Fit(...) (err error) {
//		defer errors.Recover(&err, "GMWM.Fit")
//		...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = errors.Wrapf(e, "%s: %s: recovered panic", prefix, op)
		return
	}
	*err = errors.Newf("%s: %s: recovered panic: %v", prefix, op, r)
}
