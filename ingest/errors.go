package ingest

import "errors"

// Error codes carried by IngestError.
const (
	ErrCodeMissingColumn   = "MISSING_COLUMN"
	ErrCodeEmptyDataset    = "EMPTY_DATASET"
	ErrCodeImageDecode     = "IMAGE_DECODE_FAILED"
	ErrCodeUnsupportedFile = "UNSUPPORTED_FILE_TYPE"
	ErrCodeFileTooLarge    = "FILE_TOO_LARGE"
)

// IngestError is returned for any per-artifact ingestion failure.
type IngestError struct {
	Code    string `json:"code"`
	Source  string `json:"source"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *IngestError) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code so callers can test against the sentinels below.
func (e *IngestError) Is(target error) bool {
	other, ok := target.(*IngestError)
	return ok && other.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	MissingColumnError       = &IngestError{Code: ErrCodeMissingColumn}
	EmptyDatasetError        = &IngestError{Code: ErrCodeEmptyDataset}
	ImageDecodeError         = &IngestError{Code: ErrCodeImageDecode}
	UnsupportedFileTypeError = &IngestError{Code: ErrCodeUnsupportedFile}
	FileTooLargeError        = &IngestError{Code: ErrCodeFileTooLarge}
)

func newIngestError(code, source, message string, cause error) *IngestError {
	return &IngestError{
		Code:    code,
		Source:  source,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the ingestion error code from err, or "" when err is not one.
func ErrorCode(err error) string {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Code
	}
	return ""
}
