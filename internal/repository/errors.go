package repository

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyDeclared is returned when a write targets a result that has
	// already been declared and is therefore frozen.
	ErrAlreadyDeclared = errors.New("result already declared")
)

// jsonArg marshals v for a JSONB parameter. A nil input yields SQL NULL so
// COALESCE can keep the stored value.
func jsonArg[T any](v T, isNil bool) ([]byte, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}
