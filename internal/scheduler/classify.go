package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/optimize"
)

// ErrorClass buckets a task failure for retry policy and operator guidance.
type ErrorClass string

// Error classes.
const (
	ClassTimeout     ErrorClass = "timeout"
	ClassValidation  ErrorClass = "validation"
	ClassCalculation ErrorClass = "calculation"
	ClassNetwork     ErrorClass = "network"
	ClassUnknown     ErrorClass = "unknown"
)

// WorkerError wraps a task failure with its class and a remediation hint.
type WorkerError struct {
	Class ErrorClass
	Hint  string
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt can change the outcome.
// Validation failures are deterministic and never retried.
func (e *WorkerError) Retryable() bool {
	return e.Class != ClassValidation
}

// Classify assigns an error class and hint to an evaluation failure.
func Classify(err error) *WorkerError {
	var structural *domain.StructuralError
	if errors.As(err, &structural) {
		return &WorkerError{
			Class: ClassValidation,
			Hint:  "fix the strategy definition; this failure repeats on every attempt",
			Err:   err,
		}
	}
	if isConfigError(err) {
		return &WorkerError{
			Class: ClassValidation,
			Hint:  "check the backtest date range, initial capital and rebalance interval",
			Err:   err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &WorkerError{
			Class: ClassTimeout,
			Hint:  "raise the evaluation timeout or shorten the backtest range",
			Err:   err,
		}
	}

	var dataErr *domain.DataError
	if errors.As(err, &dataErr) {
		return &WorkerError{
			Class: ClassCalculation,
			Hint:  "load price data covering the full backtest range for every referenced token",
			Err:   err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &WorkerError{
				Class: ClassTimeout,
				Hint:  "raise the evaluation timeout or check the price store's responsiveness",
				Err:   err,
			}
		}
		return &WorkerError{
			Class: ClassNetwork,
			Hint:  "check connectivity to the price store and retry",
			Err:   err,
		}
	}

	if errors.Is(err, optimize.ErrAllWindowsFailed) {
		return &WorkerError{
			Class: ClassCalculation,
			Hint:  "inspect the per-window failures; the candidate produced no usable simulation",
			Err:   err,
		}
	}

	return &WorkerError{
		Class: ClassUnknown,
		Hint:  "retry once the underlying cause is resolved",
		Err:   err,
	}
}

func isConfigError(err error) bool {
	return errors.Is(err, domain.ErrInvalidDateRange) ||
		errors.Is(err, domain.ErrInvalidCapital) ||
		errors.Is(err, domain.ErrInvalidInterval) ||
		errors.Is(err, domain.ErrMissingCapitalToken)
}
