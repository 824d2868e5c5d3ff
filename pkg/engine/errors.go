package engine

import "fmt"

// PayErrorKind classifies a failed pay attempt for the recovery UI.
type PayErrorKind int

const (
	// KindFailed is an unexpected provider or backend error; retry or escape.
	KindFailed PayErrorKind = iota
	// KindCancelled means the payer declined in their wallet; an expected
	// outcome, shown with a retry button rather than an error screen.
	KindCancelled
	// KindUnavailable means the rail cannot serve this payment at all; the
	// only recovery is choosing another method.
	KindUnavailable
)

func (k PayErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// PayError is the terminal result of one pay attempt.
type PayError struct {
	Kind PayErrorKind
	Err  error
}

func (e *PayError) Error() string {
	return fmt.Sprintf("payment %s: %v", e.Kind, e.Err)
}

func (e *PayError) Unwrap() error {
	return e.Err
}

func failed(err error) *PayError      { return &PayError{Kind: KindFailed, Err: err} }
func cancelled(err error) *PayError   { return &PayError{Kind: KindCancelled, Err: err} }
func unavailable(err error) *PayError { return &PayError{Kind: KindUnavailable, Err: err} }
