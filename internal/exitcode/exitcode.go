// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates bad arguments or an unknown command.
	UserError = 1

	// AuthError indicates missing or rejected credentials or an invalid
	// configuration file.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3

	// StorageError indicates a failure reading or writing local data
	// (state, event store, rendered log).
	StorageError = 4
)
