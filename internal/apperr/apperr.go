// Copyright (c) 2025 Justin Cranford

// Package apperr realizes the error taxonomy of the MFA client core as
// typed, correlatable values instead of ad hoc errors.New calls. It
// generalizes the teacher repo's HTTP-status-coded apperr.Error to the
// boundary taxonomy this spec names: contract violations, transport
// failures, biometric failures, and data corruption.
package apperr

import (
	"errors"
	"fmt"
	"time"

	googleUuid "github.com/google/uuid"
)

// Code is one of the stable taxonomy identifiers surfaced across the
// registration/service boundary.
type Code string

const (
	CodeDataDecodingFailed           Code = "DATA_DECODING_FAILED"
	CodeInvalidRegistrationData      Code = "INVALID_REGISTRATION_DATA"
	CodeInvalidState                 Code = "INVALID_STATE"
	CodeInvalidAlgorithm             Code = "INVALID_ALGORITHM"
	CodeNoEnrollableFactors          Code = "NO_ENROLLABLE_FACTORS"
	CodeSignatureMethodNotEnabled    Code = "SIGNATURE_METHOD_NOT_ENABLED"
	CodeEnrollmentFailed             Code = "ENROLLMENT_FAILED"
	CodeDataInitializationFailed     Code = "DATA_INITIALIZATION_FAILED"
	CodeMissingAuthenticatorIdentity Code = "MISSING_AUTHENTICATOR_IDENTIFIER"
	CodeBiometryFailed               Code = "BIOMETRY_FAILED"
	CodeFailedBiometryVerification   Code = "FAILED_BIOMETRY_VERIFICATION"
	CodeUnderlyingError              Code = "UNDERLYING_ERROR"
	CodeTokenNotFound                Code = "TOKEN_NOT_FOUND"
	CodeDataCorrupted                Code = "DATA_CORRUPTED"

	// Key-store capability taxonomy (spec.md §6).
	CodeInvalidKey      Code = "INVALID_KEY"
	CodeDuplicateKey    Code = "DUPLICATE_KEY"
	CodeUnexpectedData  Code = "UNEXPECTED_DATA"
	CodeUnhandledError  Code = "UNHANDLED_ERROR"
)

// Error is the single error type returned across every package boundary in
// this module. It carries a stable Code, a human Summary, the wrapped Err
// (nilable), a correlation ID, and a UTC Timestamp, mirroring the shape of
// the teacher's shared/apperr.Error without its HTTP-status coupling.
type Error struct {
	Code      Code
	Summary   string
	Err       error
	ID        googleUuid.UUID
	Timestamp time.Time
}

func newError(code Code, summary string, err error) *Error {
	return &Error{
		Code:      code,
		Summary:   summary,
		Err:       err,
		ID:        googleUuid.Must(googleUuid.NewV7()),
		Timestamp: time.Now().UTC(),
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (id=%s): %v", e.Code, e.Summary, e.ID, e.Err)
	}

	return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Summary, e.ID)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target shares this error's Code, so callers can
// `errors.Is(err, apperr.New(apperr.CodeInvalidState, "", nil))`-style
// match: any two *Error values with the same Code satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}

	return false
}

// New constructs an *Error with an explicit code, for callers that don't
// need one of the named constructors below.
func New(code Code, summary string, err error) *Error {
	return newError(code, summary, err)
}

// The following are the one-per-taxonomy-entry constructors named in
// spec.md §6. Each returns a *Error so errors.As(err, &apperrErr) always
// works regardless of which constructor produced it.

func DataDecodingFailed(err error) *Error {
	return newError(CodeDataDecodingFailed, "failed to decode server response", err)
}

func InvalidRegistrationData(err error) *Error {
	return newError(CodeInvalidRegistrationData, "invalid registration data", err)
}

func InvalidState() *Error {
	return newError(CodeInvalidState, "operation invoked before the required prior step completed", nil)
}

func InvalidAlgorithm(raw string) *Error {
	return newError(CodeInvalidAlgorithm, fmt.Sprintf("unrecognized signing algorithm %q", raw), nil)
}

func NoEnrollableFactors() *Error {
	return newError(CodeNoEnrollableFactors, "the server advertised no enrollable factors", nil)
}

// SignatureMethodNotEnabled carries the titlecased subtype name, per
// spec.md §4.4 step 2 ("signatureMethodNotEnabled(subType titlecased)").
func SignatureMethodNotEnabled(subType string) *Error {
	return newError(CodeSignatureMethodNotEnabled, fmt.Sprintf("%s is not enabled", titleCase(subType)), nil)
}

func EnrollmentFailed(reason string) *Error {
	return newError(CodeEnrollmentFailed, reason, nil)
}

func DataInitializationFailed(err error) *Error {
	return newError(CodeDataInitializationFailed, "failed to initialize registration data", err)
}

func MissingAuthenticatorIdentifier() *Error {
	return newError(CodeMissingAuthenticatorIdentity, "token additional data did not carry authenticator_id", nil)
}

func BiometryFailed(reason string) *Error {
	return newError(CodeBiometryFailed, reason, nil)
}

func FailedBiometryVerification(reason string) *Error {
	return newError(CodeFailedBiometryVerification, reason, nil)
}

func UnderlyingError(cause error) *Error {
	return newError(CodeUnderlyingError, "underlying error", cause)
}

func TokenNotFound() *Error {
	return newError(CodeTokenNotFound, "no refresh token available", nil)
}

// DataCorrupted reproduces the fixed diagnostic required by spec.md §3/§8
// for factor decode failures: the message MUST contain the literal
// "No valid factor type found."
func DataCorrupted(message string) *Error {
	return newError(CodeDataCorrupted, message, nil)
}

func InvalidKey() *Error      { return newError(CodeInvalidKey, "invalid key", nil) }
func DuplicateKey() *Error    { return newError(CodeDuplicateKey, "duplicate key", nil) }
func UnexpectedData() *Error  { return newError(CodeUnexpectedData, "unexpected data", nil) }
func UnhandledError(msg string) *Error {
	return newError(CodeUnhandledError, msg, nil)
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Code == code
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}

	return string(r)
}
