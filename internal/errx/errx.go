// Package errx provides small helpers for attaching context to a sentinel
// error while keeping it matchable with errors.Is.
package errx

import "fmt"

// With formats msg (and args) and appends it to sentinel's message, returning
// an error that still unwraps to sentinel. The format string may itself
// contain a trailing %w to additionally wrap a causal error:
//
//	errx.With(ErrInvalidConfig, ": port %d: %w", port, err)
func With(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w"+format, append([]interface{}{sentinel}, args...)...)
}

// Wrap joins sentinel and cause so the result unwraps to both.
func Wrap(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
