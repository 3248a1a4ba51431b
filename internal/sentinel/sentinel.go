// Package sentinel holds infrastructure facts returned by the stores. Stores
// wrap these so handlers can map them onto HTTP statuses with errors.Is
// without knowing which backend produced them.
package sentinel

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrTimeout is a bounded read that ran past its budget. Callers may retry.
	ErrTimeout     = errors.New("timeout")
	ErrUnavailable = errors.New("unavailable")
)

// FromContext turns a deadline error into ErrTimeout and leaves everything
// else untouched.
func FromContext(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	return err
}
