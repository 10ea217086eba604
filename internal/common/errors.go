// Package common holds the error taxonomy shared by repositories, services
// and HTTP handlers.
//
// Lower layers wrap these sentinels with context using fmt.Errorf("...: %w").
// Handlers translate them into fixed status codes and messages with errors.Is,
// so raw collaborator errors never reach a client.
package common

import "errors"

var (
	// ErrValidation marks a malformed or out-of-range request body.
	ErrValidation = errors.New("validation error")

	// ErrConflict marks a uniqueness violation, e.g. a duplicate username.
	ErrConflict = errors.New("already exists")

	// ErrNotFound is returned both when a record does not exist and when it
	// belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned by login for an unknown user and for
	// a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated marks a missing, malformed, invalid or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrDependency wraps failures of the database, the AI model, the image
	// store or an image download.
	ErrDependency = errors.New("dependency failure")
)
