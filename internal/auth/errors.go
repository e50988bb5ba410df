// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Rejection is an authentication rejection whose message is safe to show
// to the client. Any other error reaching the orchestrator is internal
// and must be replaced with a generic message.
type Rejection struct {
	Message string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return r.Message
}

// Reject creates a Rejection with a formatted user-facing message.
func Reject(format string, args ...any) error {
	return &Rejection{Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a Rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
