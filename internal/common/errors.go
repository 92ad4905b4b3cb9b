package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Extraction error taxonomy.
var (
	ErrUnsupportedChannel        = errors.New("unsupported channel")
	ErrAcquisitionFailed         = errors.New("acquisition failed")
	ErrScannedDocumentUnreadable = errors.New("scanned document unreadable")
	// ErrNoDataExtracted is non-fatal: it accompanies a valid, empty record.
	ErrNoDataExtracted = errors.New("no data extracted")
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

const (
	CodeUnsupportedChannel = "UNSUPPORTED_CHANNEL"
	CodeAcquisitionFailed  = "ACQUISITION_FAILED"
	CodeScannedUnreadable  = "SCANNED_DOCUMENT_UNREADABLE"
	CodeNoDataExtracted    = "NO_DATA_EXTRACTED"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// joinCause keeps both the sentinel and the backend error reachable through errors.Is.
func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

func NewUnsupportedChannel(filename, mediaType string) *AppError {
	return NewAppError(CodeUnsupportedChannel,
		fmt.Sprintf("no channel for file %q (media type %q)", filename, mediaType),
		ErrUnsupportedChannel)
}

func NewAcquisitionFailed(message string, cause error) *AppError {
	return NewAppError(CodeAcquisitionFailed, message, joinCause(ErrAcquisitionFailed, cause))
}

func NewScannedUnreadable(message string, cause error) *AppError {
	return NewAppError(CodeScannedUnreadable, message, joinCause(ErrScannedDocumentUnreadable, cause))
}

func NewNoDataExtracted() *AppError {
	return NewAppError(CodeNoDataExtracted, "no header fields or line items found", ErrNoDataExtracted)
}

// Remediation returns the user-facing hint for an extraction error.
func Remediation(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedChannel):
		return "upload a PDF, spreadsheet, text, email or image file"
	case errors.Is(err, ErrScannedDocumentUnreadable):
		return "the scan could not be read; rescan the document at a higher quality"
	case errors.Is(err, ErrAcquisitionFailed):
		return "the file could not be read; re-export or reformat it and try again"
	case errors.Is(err, ErrNoDataExtracted):
		return "no fields were recognized; enter the record manually"
	default:
		return ""
	}
}

// ToStatus maps application errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrUnsupportedChannel), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrScannedDocumentUnreadable), errors.Is(err, ErrAcquisitionFailed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
