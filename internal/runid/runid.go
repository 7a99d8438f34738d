// Package runid generates the UUIDv4 run identifiers used in
// ExecutionResult.run_id (spec.md §3).
package runid

import "github.com/google/uuid"

// New returns a fresh UUIDv4 string.
func New() string {
	return uuid.NewString()
}
