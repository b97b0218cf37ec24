package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorPassesThroughAppError(t *testing.T) {
	original := NewMissingFileError()
	converted := FromError(original)

	assert.Same(t, original, converted)
	assert.Equal(t, http.StatusBadRequest, converted.StatusCode)
	assert.Equal(t, "MISSING_FILE", converted.Code)
}

func TestFromErrorWrapsPlainError(t *testing.T) {
	converted := FromError(fmt.Errorf("conexión rechazada"))

	assert.Equal(t, http.StatusInternalServerError, converted.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", converted.Code)
	assert.Contains(t, converted.Message, "conexión rechazada")
}

func TestStorageUnavailableCarriesCause(t *testing.T) {
	err := NewStorageUnavailableError(fmt.Errorf("dial tcp: timeout"))

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "STORAGE_UNAVAILABLE", err.Code)
	assert.Equal(t, "dial tcp: timeout", err.Details)
}

func TestGetStatusCodeAndErrorCode(t *testing.T) {
	assert.Equal(t, http.StatusUnsupportedMediaType, GetStatusCode(NewUnsupportedMediaTypeError()))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(fmt.Errorf("boom")))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", GetErrorCode(NewPayloadTooLargeError(10<<20)))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(fmt.Errorf("boom")))
}

func TestIsMatchesByCode(t *testing.T) {
	assert.True(t, Is(NewMissingFileError(), NewMissingFileError()))
	assert.False(t, Is(NewMissingFileError(), NewUnsupportedMediaTypeError()))
	assert.False(t, Is(fmt.Errorf("boom"), NewMissingFileError()))
}
