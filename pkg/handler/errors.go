package handler

import "net/http"

// Package-level Error values, one per error kind, declared as ready-made
// Error values carrying their HTTP status.
var (
	ErrInvalidUploadLength = NewError("ERR_INVALID_UPLOAD_LENGTH", "missing or invalid Upload-Length header", http.StatusBadRequest)
	ErrMaxSizeExceeded     = NewError("ERR_MAX_SIZE_EXCEEDED", "upload length exceeds the configured maximum", http.StatusRequestEntityTooLarge)
	ErrInvalidMetadata     = NewError("ERR_INVALID_METADATA", "missing required filename in Upload-Metadata", http.StatusBadRequest)

	ErrNotFound        = NewError("ERR_UPLOAD_NOT_FOUND", "upload not found", http.StatusNotFound)
	ErrGone            = NewError("ERR_UPLOAD_EXPIRED", "upload has expired", http.StatusGone)
	ErrInvalidOffset   = NewError("ERR_INVALID_OFFSET", "missing or invalid Upload-Offset header", http.StatusBadRequest)
	ErrMismatchOffset  = NewError("ERR_MISMATCHED_OFFSET", "Upload-Offset does not match the upload's current offset", http.StatusConflict)
	ErrEmptyBody       = NewError("ERR_EMPTY_BODY", "PATCH body must not be empty", http.StatusBadRequest)
	ErrSizeExceeded    = NewError("ERR_UPLOAD_SIZE_EXCEEDED", "offset plus body length exceeds the upload's declared size", http.StatusBadRequest)
	ErrInvalidContentType = NewError("ERR_INVALID_CONTENT_TYPE", "Content-Type must be application/offset+octet-stream", http.StatusUnsupportedMediaType)
	ErrUnsupportedVersion = NewError("ERR_UNSUPPORTED_VERSION", "missing, invalid or unsupported Tus-Resumable header", http.StatusPreconditionFailed)
	ErrLockConflict       = NewError("ERR_UPLOAD_LOCKED", "another request is currently writing to this upload", http.StatusConflict)

	ErrInvalidChecksumAlgorithm = NewError("ERR_INVALID_CHECKSUM_ALGORITHM", "unsupported Upload-Checksum algorithm", http.StatusBadRequest)
	ErrChecksumMismatch         = NewError("ERR_CHECKSUM_MISMATCH", "uploaded chunk does not match the provided checksum", 460)

	ErrQuotaExceeded = NewError("ERR_QUOTA_EXCEEDED", "storage quota exceeded", http.StatusInsufficientStorage)

	ErrRangeNotSatisfiable = NewError("ERR_RANGE_NOT_SATISFIABLE", "invalid or out-of-bounds Range header", http.StatusRequestedRangeNotSatisfiable)

	ErrBackendTransient = NewError("ERR_BACKEND_TRANSIENT", "state backend or filesystem error, retry", http.StatusServiceUnavailable)
	ErrInternal         = NewError("ERR_INTERNAL", "internal invariant violation", http.StatusInternalServerError)

	ErrReadTimeout     = NewError("ERR_READ_TIMEOUT", "timeout while reading request body", http.StatusInternalServerError)
	ErrConnectionReset = NewError("ERR_CONNECTION_RESET", "TCP connection reset by peer", http.StatusInternalServerError)
)

// ErrUnexpectedEOF is surfaced by the body reader when the client aborts
// the request body mid-stream before the declared length is reached.
var ErrUnexpectedEOF = NewError("ERR_UNEXPECTED_EOF", "client closed connection before sending the declared body length", http.StatusBadRequest)
