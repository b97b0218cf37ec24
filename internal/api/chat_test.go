package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/internal/service"
	"dinsac-chat/backend/pkg/errors"
	"dinsac-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatStore struct {
	history       []models.ChatMessage
	conversations []models.ConversationSummary
	purgeCount    int64
	failWith      error
	purgedID      string
}

func (f *fakeChatStore) History(clienteID string) ([]models.ChatMessage, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.history == nil {
		return []models.ChatMessage{}, nil
	}
	return f.history, nil
}

func (f *fakeChatStore) ListConversations(_ context.Context) ([]models.ConversationSummary, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.conversations, nil
}

func (f *fakeChatStore) Purge(_ context.Context, clienteID string) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	f.purgedID = clienteID
	return f.purgeCount, nil
}

type fakeAttachments struct {
	stored   *service.StoredFile
	path     string
	failWith error
}

func (f *fakeAttachments) Save(_ *multipart.FileHeader) (*service.StoredFile, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.stored, nil
}

func (f *fakeAttachments) Resolve(_ string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return f.path, nil
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) NotifyPurge(clienteID string) {
	f.notified = append(f.notified, clienteID)
}

func newTestRouter(chat ChatStore, attachments AttachmentStore, notifier PurgeNotifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})

	engine := gin.New()
	engine.Use(errors.ErrorHandler())

	handler := NewChatHandler(chat, attachments, notifier, nil, log)
	handler.RegisterRoutes(engine)
	return engine
}

func TestListConversations(t *testing.T) {
	chat := &fakeChatStore{conversations: []models.ConversationSummary{
		{ID: "anon-12345678", Nombre: "Cliente 1234"},
	}}
	engine := newTestRouter(chat, &fakeAttachments{}, &fakeNotifier{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/clientes-chat", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got []models.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "anon-12345678", got[0].ID)
	assert.Equal(t, "Cliente 1234", got[0].Nombre)
}

func TestGetHistoryReturnsAscendingMessages(t *testing.T) {
	chat := &fakeChatStore{history: []models.ChatMessage{
		{ClienteID: "anon-12345678", Mensaje: "Hola", Fecha: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ClienteID: "anon-12345678", Mensaje: "¿Precio?", Fecha: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)},
	}}
	engine := newTestRouter(chat, &fakeAttachments{}, &fakeNotifier{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/anon-12345678", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got []models.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Hola", got[0].Mensaje)
}

func TestGetHistoryEmptyConversation(t *testing.T) {
	engine := newTestRouter(&fakeChatStore{}, &fakeAttachments{}, &fakeNotifier{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/desconocido", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestDeleteChatPurgesAndNotifies(t *testing.T) {
	chat := &fakeChatStore{purgeCount: 3}
	notifier := &fakeNotifier{}
	engine := newTestRouter(chat, &fakeAttachments{}, notifier)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/chats/anon-12345678", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deletedCount":3}`, w.Body.String())
	assert.Equal(t, "anon-12345678", chat.purgedID)
	assert.Equal(t, []string{"anon-12345678"}, notifier.notified)
}

func TestDeleteChatStorageFailure(t *testing.T) {
	chat := &fakeChatStore{failWith: errors.NewStorageUnavailableError(fmt.Errorf("down"))}
	notifier := &fakeNotifier{}
	engine := newTestRouter(chat, &fakeAttachments{}, notifier)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/chats/anon-12345678", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "STORAGE_UNAVAILABLE")
	assert.Empty(t, notifier.notified)
}

func TestUploadWithoutFile(t *testing.T) {
	engine := newTestRouter(&fakeChatStore{}, &fakeAttachments{}, &fakeNotifier{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/upload-chat", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_FILE")
}

func TestUploadReturnsStoredFile(t *testing.T) {
	attachments := &fakeAttachments{stored: &service.StoredFile{
		Nombre: "1717240000000-captura.png",
		URL:    "http://localhost:3000/uploads/1717240000000-captura.png",
		Tipo:   "image/png",
	}}
	engine := newTestRouter(&fakeChatStore{}, attachments, &fakeNotifier{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("archivo", "captura.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/upload-chat", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got service.StoredFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "http://localhost:3000/uploads/1717240000000-captura.png", got.URL)
	assert.Equal(t, "image/png", got.Tipo)
}

func TestUploadRejectedByValidation(t *testing.T) {
	attachments := &fakeAttachments{failWith: errors.NewUnsupportedMediaTypeError()}
	engine := newTestRouter(&fakeChatStore{}, attachments, &fakeNotifier{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("archivo", "malware.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/upload-chat", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
}

func TestDownloadMissingFile(t *testing.T) {
	attachments := &fakeAttachments{failWith: errors.NewError(500, "NOT_FOUND", "Archivo no encontrado")}
	engine := newTestRouter(&fakeChatStore{}, attachments, &fakeNotifier{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/descargar/no-existe.pdf", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}
