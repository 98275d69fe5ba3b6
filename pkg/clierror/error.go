package clierror

import (
	"encoding/json"
	"fmt"
	"os"
)

// Exit codes for the entrayk CLI.
const (
	ExitSuccess    = 0 // Operation completed successfully
	ExitGeneral    = 1 // Unknown/unhandled error
	ExitValidation = 2 // Bad selection or identity before any external call
	ExitAuth       = 3 // Token acquisition or directory session failure
	ExitHardware   = 4 // Security key not detected or not configurable
	ExitEnrollment = 5 // Directory rejected the credential registration
)

// Error codes (strings) for programmatic error handling.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeHardwareFailed   = "HARDWARE_FAILED"
	CodeEnrollmentFailed = "ENROLLMENT_FAILED"
	CodeGroupNotFound    = "GROUP_NOT_FOUND"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
	ExitCode  int    `json:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// UnknownDevice creates an error for an AAGUID that is not in the device table.
func UnknownDevice(id string) *CLIError {
	return &CLIError{
		Code:      CodeValidationFailed,
		Message:   fmt.Sprintf("unknown device identifier '%s'", id),
		Hint:      "List supported AAGUIDs with 'entrayk devices'",
		Retryable: false,
		ExitCode:  ExitValidation,
	}
}

// EmptySelection creates an error for a policy built from no devices.
func EmptySelection() *CLIError {
	return &CLIError{
		Code:      CodeValidationFailed,
		Message:   "no device identifiers selected",
		Hint:      "Pass one or more --aaguid flags, or --all-known for every supported device",
		Retryable: false,
		ExitCode:  ExitValidation,
	}
}

// BadIdentity creates an error for a malformed user principal name.
func BadIdentity(upn string) *CLIError {
	return &CLIError{
		Code:      CodeValidationFailed,
		Message:   fmt.Sprintf("'%s' is not a valid user principal name", upn),
		Hint:      "Expected the form user@domain",
		Retryable: false,
		ExitCode:  ExitValidation,
	}
}

// AuthFailed creates an error for token acquisition failures.
func AuthFailed(err error) *CLIError {
	return &CLIError{
		Code:      CodeAuthFailed,
		Message:   fmt.Sprintf("failed to acquire directory session: %s", err),
		Hint:      "Re-authenticate with 'entrayk login'",
		Retryable: true,
		ExitCode:  ExitAuth,
	}
}

// HardwareFailed creates an error when a security key cannot be used.
func HardwareFailed(step string, err error) *CLIError {
	return &CLIError{
		Code:      CodeHardwareFailed,
		Message:   fmt.Sprintf("security key %s failed: %s", step, err),
		Hint:      "Re-insert the key and check it is a FIDO2 device",
		Retryable: true,
		ExitCode:  ExitHardware,
	}
}

// EnrollmentFailed creates an error when the directory rejects a registration.
func EnrollmentFailed(upn, step, detail string) *CLIError {
	return &CLIError{
		Code:      CodeEnrollmentFailed,
		Message:   fmt.Sprintf("enrollment for '%s' failed at %s: %s", upn, step, detail),
		Hint:      "The key was not registered; retry the enrollment for this user",
		Retryable: true,
		ExitCode:  ExitEnrollment,
	}
}

// GroupNotFound creates an error when a group cannot be resolved by name.
func GroupNotFound(name string) *CLIError {
	return &CLIError{
		Code:      CodeGroupNotFound,
		Message:   fmt.Sprintf("group '%s' not found in the directory", name),
		Hint:      "Group lookup matches the display name exactly",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// UserNotFound creates an error when an identity does not exist.
func UserNotFound(upn string) *CLIError {
	return &CLIError{
		Code:      CodeUserNotFound,
		Message:   fmt.Sprintf("user '%s' not found in the directory", upn),
		Hint:      "Check the user principal name spelling",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:      CodeInternalError,
		Message:   msg,
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// FormatError returns the error formatted for the given output format.
// Supported formats: "json" for JSON output, anything else for human-readable format.
func FormatError(err *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			// Fallback to simple JSON if marshaling fails
			return fmt.Sprintf(`{"code":%q,"message":%q}`, err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}

// PrintError prints the error to stderr in the appropriate format.
func PrintError(err *CLIError, outputFormat string) {
	fmt.Fprintln(os.Stderr, FormatError(err, outputFormat))
}
