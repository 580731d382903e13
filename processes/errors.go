package processes

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a supervisor failure.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNoFreePort means the port search was exhausted before any process was spawned.
	ErrorTypeNoFreePort
	// ErrorTypeSpawn means the OS refused to start the command (missing executable, permissions).
	ErrorTypeSpawn
	// ErrorTypeEarlyExit means the process exited before it became alive.
	ErrorTypeEarlyExit
	// ErrorTypeStartupTimeout means the process did not become alive in the allowed time.
	ErrorTypeStartupTimeout
)

// String returns a string representation of the ErrorType.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNoFreePort:
		return "NoFreePort"
	case ErrorTypeSpawn:
		return "Spawn"
	case ErrorTypeEarlyExit:
		return "EarlyExit"
	case ErrorTypeStartupTimeout:
		return "StartupTimeout"
	default:
		return "Unknown"
	}
}

const (
	noFreePortMessage     = "Could not find a free port! Try rerunning your command."
	startupTimeoutMessage = "Could not spawn Devnet! Ensure that you can spawn using the chosen method. " +
		"Alternatively, increase the startup time defined in the config object provided on spawning."
	earlyExitFormat = "Devnet exited with code %d. Check Devnet's logged output for more info. " +
		"The output location is configurable via the config object passed to the Devnet spawning method."
)

// Error represents a structured supervisor error with type information
type Error struct {
	Type     ErrorType
	Message  string
	ExitCode int
	Cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewNoFreePortError creates the error returned when the port search is exhausted.
func NewNoFreePortError() *Error {
	return &Error{Type: ErrorTypeNoFreePort, Message: noFreePortMessage}
}

// NewSpawnError wraps the OS error returned when starting a command.
func NewSpawnError(command string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeSpawn,
		Message: fmt.Sprintf("failed to start %s", command),
		Cause:   cause,
	}
}

// NewEarlyExitError creates the error returned when the process exits before becoming alive.
func NewEarlyExitError(exitCode int) *Error {
	return &Error{
		Type:     ErrorTypeEarlyExit,
		Message:  fmt.Sprintf(earlyExitFormat, exitCode),
		ExitCode: exitCode,
	}
}

// NewStartupTimeoutError creates the error returned when the startup time is exceeded.
func NewStartupTimeoutError() *Error {
	return &Error{Type: ErrorTypeStartupTimeout, Message: startupTimeoutMessage}
}

func isType(err error, errorType ErrorType) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.IsType(errorType)
	}
	return false
}

// IsNoFreePortError checks if an error reports port exhaustion
func IsNoFreePortError(err error) bool {
	return isType(err, ErrorTypeNoFreePort)
}

// IsSpawnError checks if an error was raised by the OS while starting the command
func IsSpawnError(err error) bool {
	return isType(err, ErrorTypeSpawn)
}

// IsEarlyExitError checks if an error reports an exit before readiness
func IsEarlyExitError(err error) bool {
	return isType(err, ErrorTypeEarlyExit)
}

// IsStartupTimeoutError checks if an error reports an exceeded startup time
func IsStartupTimeoutError(err error) bool {
	return isType(err, ErrorTypeStartupTimeout)
}
