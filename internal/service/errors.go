package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-assess/internal/repository"
)

// Domain errors returned by services. Handlers map them onto response codes.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrForbidden             = errors.New("forbidden")
	ErrResultAlreadyDeclared = errors.New("result already declared")
	ErrDeclarationStalled    = errors.New("declaration stopped before all results were declared")
)

// invalidArgument wraps ErrInvalidArgument with the offending field.
func invalidArgument(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, reason)
}

// notFound translates a repository miss, wrapping anything else with op.
func notFound(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
