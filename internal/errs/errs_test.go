package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "case 7 not found", NotFound(CodeCaseNotFound, "case", "case 7 not found").Error())
	wrapped := Storage(fmt.Errorf("disk I/O error"), "list cases")
	assert.Equal(t, "list cases: disk I/O error", wrapped.Error())
}

func TestKindOfWrapped(t *testing.T) {
	base := Conflict(CodeSameFiscal, "fiscal", "already assigned")
	wrapped := fmt.Errorf("reassign: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.False(t, IsKind(wrapped, KindValidation))

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeSameFiscal, got.Code)
	assert.Equal(t, "fiscal", got.Field)
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindStorage, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindStorage))
}

func TestStorageUnwrap(t *testing.T) {
	inner := errors.New("database is closed")
	err := Storage(inner, "get case")
	assert.ErrorIs(t, err, inner)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindStorage))
}
