package prstack

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
)

var (
	// ErrNoCredential is returned when no token is available; no request was made.
	ErrNoCredential = errors.New("no GitHub credential available")
	// ErrCycleOrTooDeep is returned alongside a truncated chain when the walk hit its hop bound.
	ErrCycleOrTooDeep = errors.New("branch chain is cyclic or deeper than the hop limit")
)

// APIError reports a failed remote call. StatusCode is zero for transport failures.
type APIError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// apiError classifies an error from the low-level client.
func apiError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, github.ErrNoToken) || errors.Is(err, ErrNoCredential) {
		return ErrNoCredential
	}
	var already *APIError
	if errors.As(err, &already) {
		return err
	}
	var ghErr *github.Error
	if errors.As(err, &ghErr) {
		return &APIError{Op: op, StatusCode: ghErr.StatusCode, Err: err}
	}
	return &APIError{Op: op, Err: err}
}
