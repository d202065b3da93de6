package utils

import (
	"fmt"
)

// Wraps err with a formatted details message. The details may themselves use %w
// to chain an additional cause.
func MakeError(err error, detailsBody string, args ...any) error {
	return fmt.Errorf("%w: "+detailsBody, append([]any{err}, args...)...)
}
