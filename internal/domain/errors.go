package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecognition marks failures of the external recognition process.
	ErrRecognition = errors.New("recognition failed")
	// ErrResolverUnavailable indicates the catalog could not be queried.
	ErrResolverUnavailable = errors.New("nutrition resolver unavailable")
	// ErrLedgerWrite indicates a meal commit was rejected by the store.
	ErrLedgerWrite = errors.New("meal ledger write failed")
	// ErrTotalUnavailable indicates a commit was stored but its total could
	// not be read back. Retrying the commit would add the entries again.
	ErrTotalUnavailable = errors.New("meal stored; total unavailable")
	// ErrInvalidProfile indicates biometric attributes that cannot yield a target.
	ErrInvalidProfile = errors.New("invalid biometric profile")
	// ErrOrchestration marks a failed budget or recommendation computation.
	ErrOrchestration = errors.New("budget orchestration failed")
	// ErrInvalidInput indicates a malformed request value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProfileNotFound indicates the user has no biometric profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrFoodNotFound indicates no catalog record matched.
	ErrFoodNotFound = errors.New("food not found")
)

// InvalidInputf returns an error wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// OrchestrationError wraps the sub-call failure of a composed operation.
type OrchestrationError struct {
	Op    string
	Cause error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OrchestrationError) Unwrap() []error {
	return []error{ErrOrchestration, e.Cause}
}
