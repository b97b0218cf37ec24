package service

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dinsac-chat/backend/internal/models"
	apperrors "dinsac-chat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttachmentService(t *testing.T, maxSize int64) (*AttachmentService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewAttachmentServiceWithConfig(dir, "http://localhost:3000", maxSize, []string{"jpg", "jpeg", "png", "pdf"}, testLogger())
	return svc, dir
}

func makeFileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archivo"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-chat", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	_, fh, err := req.FormFile("archivo")
	require.NoError(t, err)
	return fh
}

func TestSaveAcceptsAllowedFile(t *testing.T) {
	svc, dir := newTestAttachmentService(t, 10<<20)

	fh := makeFileHeader(t, "captura.png", "image/png", []byte("png-bytes"))
	stored, err := svc.Save(fh)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stored.Nombre, "-captura.png"))
	assert.Equal(t, "http://localhost:3000/uploads/"+stored.Nombre, stored.URL)
	assert.Equal(t, "image/png", stored.Tipo)

	data, err := os.ReadFile(filepath.Join(dir, stored.Nombre))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSaveSanitizesWhitespaceInFilename(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 10<<20)

	fh := makeFileHeader(t, "mi archivo de compra.pdf", "application/pdf", []byte("%PDF"))
	stored, err := svc.Save(fh)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(stored.Nombre, "-mi_archivo_de_compra.pdf"))
	assert.NotContains(t, stored.Nombre, " ")
}

func TestSaveRejectsMissingFile(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 10<<20)

	_, err := svc.Save(nil)
	require.Error(t, err)
	assert.Equal(t, "MISSING_FILE", apperrors.GetErrorCode(err))
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	svc, dir := newTestAttachmentService(t, 10<<20)

	fh := makeFileHeader(t, "malware.exe", "application/octet-stream", []byte("MZ"))
	_, err := svc.Save(fh)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", apperrors.GetErrorCode(err))
	assert.Equal(t, http.StatusUnsupportedMediaType, apperrors.GetStatusCode(err))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "nothing may be persisted for a rejected upload")
}

func TestSaveRejectsMismatchedMimeType(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 10<<20)

	fh := makeFileHeader(t, "foto.png", "application/zip", []byte("PK"))
	_, err := svc.Save(fh)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", apperrors.GetErrorCode(err))
}

func TestSaveRejectsOversizeFile(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 8)

	fh := makeFileHeader(t, "grande.png", "image/png", bytes.Repeat([]byte("x"), 64))
	_, err := svc.Save(fh)
	require.Error(t, err)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", apperrors.GetErrorCode(err))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apperrors.GetStatusCode(err))
}

func TestResolveExistingFile(t *testing.T) {
	svc, dir := newTestAttachmentService(t, 10<<20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF"), 0o644))

	path, err := svc.Resolve("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), path)
}

func TestResolveRejectsPathTraversal(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 10<<20)

	_, err := svc.Resolve("../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, "INVALID_FILENAME", apperrors.GetErrorCode(err))
}

func TestResolveMissingFile(t *testing.T) {
	svc, _ := newTestAttachmentService(t, 10<<20)

	_, err := svc.Resolve("no-existe.pdf")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.GetErrorCode(err))
}

func TestRemoveConversationFiles(t *testing.T) {
	svc, dir := newTestAttachmentService(t, 10<<20)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-a.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2-b.pdf"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3-c.png"), []byte("c"), 0o644))

	messages := []models.ChatMessage{
		{ClienteID: "anon-1234", Mensaje: "Hola"},
		{ClienteID: "anon-1234", Mensaje: "http://localhost:3000/uploads/1-a.png"},
		{ClienteID: "anon-1234", Mensaje: "mira uploads/2-b.pdf"},
		{ClienteID: "anon-1234", Mensaje: "uploads/ya-borrado.png"},
	}

	removed := svc.RemoveConversationFiles(messages)
	assert.Equal(t, 2, removed)

	_, err := os.Stat(filepath.Join(dir, "1-a.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "2-b.pdf"))
	assert.True(t, os.IsNotExist(err))

	// Files not referenced by the conversation stay untouched
	_, err = os.Stat(filepath.Join(dir, "3-c.png"))
	assert.NoError(t, err)
}
