// Package transfer implements the secure transfer protocol core: upload
// sessions and chunk assembly, the access-request state machine, the
// release gate and the key escrow. It owns no transport; the HTTP layer
// maps the sentinel errors below onto status codes.
package transfer

import "errors"

// Stable error codes for expected business outcomes. Handlers detect them
// with errors.Is; none of them indicates a bug.
var (
	// ErrNotFound indicates the referenced file, share, session or request
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or out-of-policy input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidSession indicates an unknown, expired, cancelled or already
	// finalized upload session key.
	ErrInvalidSession = errors.New("invalid upload session")

	// ErrIndexOutOfRange indicates a chunk index at or past total_chunks.
	ErrIndexOutOfRange = errors.New("chunk index out of range")

	// ErrChunkConflict indicates a chunk index was re-sent with different
	// bytes. Integrity error; never retried with the same inputs.
	ErrChunkConflict = errors.New("chunk conflict")

	// ErrIncompleteUpload indicates Complete was called before every chunk
	// was received.
	ErrIncompleteUpload = errors.New("incomplete upload")

	// ErrSizeMismatch indicates the assembled ciphertext does not add up to
	// the size announced at Initiate. Integrity error.
	ErrSizeMismatch = errors.New("assembled size mismatch")

	// ErrNotOwner indicates the caller does not own the file.
	ErrNotOwner = errors.New("not the file owner")

	// ErrFileNotReady indicates the file's upload has not completed.
	ErrFileNotReady = errors.New("file not ready")

	// ErrFileGone indicates the file is expired or invalidated; no new
	// requests may be created against it.
	ErrFileGone = errors.New("file gone")

	// ErrRequestsBlocked indicates the owner has stopped accepting new
	// access requests for the file.
	ErrRequestsBlocked = errors.New("requests blocked")

	// ErrAlreadyApproved indicates Approve was retried with different key
	// material than the one recorded.
	ErrAlreadyApproved = errors.New("already approved with different key material")

	// Gate denial errors, one per deny reason.
	ErrExpired          = errors.New("file expired")
	ErrInvalidated      = errors.New("file invalidated")
	ErrNotApproved      = errors.New("request not approved")
	ErrDownloadsBlocked = errors.New("downloads blocked")
	ErrLimitReached     = errors.New("download limit reached")
)
