package store

import "errors"

// Standard errors returned by Backend implementations.
//
// Implementations wrap these with context:
//
//	return fmt.Errorf("%s/%s: %w", collection, key, store.ErrNotFound)
//
// Callers match them with errors.Is.
var (
	// ErrNotFound indicates that no record exists under the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable indicates that the backend is closed or could not be opened.
	ErrUnavailable = errors.New("storage backend unavailable")

	// ErrStorageWrite indicates that a record or payload could not be persisted.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrDecode indicates that a stored record or payload could not be reconstructed.
	ErrDecode = errors.New("stored data could not be decoded")

	// ErrInvalidKey indicates an empty or malformed record key.
	ErrInvalidKey = errors.New("invalid record key")

	// ErrInvalidCollection indicates a collection name the store does not know.
	ErrInvalidCollection = errors.New("unknown collection")
)
