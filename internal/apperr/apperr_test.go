package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(KindDiskWriteFailure, "write file", os.ErrPermission)
	wrapped := fmt.Errorf("save f-1: %w", base)

	assert.Equal(t, KindDiskWriteFailure, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, os.ErrPermission))
	assert.Equal(t, "save f-1: write file: permission denied", wrapped.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindInvalidAction))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindMissingField))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindSpawnFailure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindPartialSave))
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(KindInvalidAction, "invalid action", nil)
	assert.Equal(t, "invalid action", err.Error())
}
