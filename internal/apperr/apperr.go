package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure so callers can tell a disk failure from a
// metadata store failure without parsing messages.
type Kind string

const (
	KindSpawnFailure         Kind = "spawn_failure"
	KindMetadataWriteFailure Kind = "metadata_write_failure"
	KindMetadataReadFailure  Kind = "metadata_read_failure"
	KindDiskWriteFailure     Kind = "disk_write_failure"
	KindPartialSave          Kind = "partial_save"
	KindInvalidAction        Kind = "invalid_action"
	KindMissingField         Kind = "missing_field"
	KindInternal             Kind = "internal"
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and op. A nil err yields an error whose message is op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the status code returned by the API. Only an
// unrecognized action is a client error; everything else, missing fields and
// undecodable bodies included, answers 500.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidAction:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
