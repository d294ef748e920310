package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrTemplateNotFound = fmt.Errorf("%w: scenario template", ErrNotFound)
	ErrResultNotFound   = fmt.Errorf("%w: simulation result", ErrNotFound)

	// Configuration errors
	ErrInvalidDistribution     = errors.New("invalid distribution specification")
	ErrUnsupportedDistribution = errors.New("unsupported distribution kind")
	ErrInvalidCorrelation      = errors.New("invalid correlation specification")
	ErrNotPositiveSemiDefinite = errors.New("correlation matrix is not positive semi-definite")
	ErrInvalidExpression       = errors.New("invalid output expression")
	ErrInvalidIterations       = errors.New("iteration count out of bounds")

	// Execution errors
	ErrTrialFailed      = errors.New("trial execution failed")
	ErrFailureThreshold = errors.New("trial failure rate exceeded threshold")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewDistributionError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDistribution, field, reason)
}

func NewCorrelationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCorrelation, reason)
}

func NewExpressionError(output string, reason string) error {
	return fmt.Errorf("%w for output %q: %s", ErrInvalidExpression, output, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidDistribution) ||
		errors.Is(err, ErrUnsupportedDistribution) ||
		errors.Is(err, ErrInvalidCorrelation) ||
		errors.Is(err, ErrNotPositiveSemiDefinite) ||
		errors.Is(err, ErrInvalidExpression) ||
		errors.Is(err, ErrInvalidIterations)
}

func IsExecutionError(err error) bool {
	return errors.Is(err, ErrTrialFailed) ||
		errors.Is(err, ErrFailureThreshold)
}
