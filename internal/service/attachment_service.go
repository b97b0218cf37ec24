package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"dinsac-chat/backend/internal/models"
	"dinsac-chat/backend/pkg/config"
	"dinsac-chat/backend/pkg/errors"
	"dinsac-chat/backend/pkg/logger"
)

// uploadsMarker is the path fragment message bodies use to reference a stored file
const uploadsMarker = "uploads/"

var whitespacePattern = regexp.MustCompile(`\s+`)

// StoredFile describes an accepted upload
type StoredFile struct {
	Nombre string `json:"nombre"`
	URL    string `json:"url"`
	Tipo   string `json:"tipo"`
}

// AttachmentService stores chat attachments on the local filesystem and
// removes them when their conversation is purged.
type AttachmentService struct {
	dir     string
	baseURL string
	maxSize int64
	allowed map[string]bool
	logger  *logger.Logger
}

// NewAttachmentService creates an attachment service from the application configuration
func NewAttachmentService(log *logger.Logger) *AttachmentService {
	cfg := config.Get()
	return NewAttachmentServiceWithConfig(
		cfg.Uploads.Dir,
		cfg.Server.BaseURL,
		cfg.Uploads.MaxFileSize,
		cfg.Uploads.AllowedTypes,
		log,
	)
}

// NewAttachmentServiceWithConfig creates an attachment service with explicit settings
func NewAttachmentServiceWithConfig(dir, baseURL string, maxSize int64, allowedTypes []string, log *logger.Logger) *AttachmentService {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &AttachmentService{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		allowed: allowed,
		logger:  log,
	}
}

// EnsureDir creates the uploads directory if it does not exist yet
func (s *AttachmentService) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Save validates and stores one uploaded file, returning its stored name and
// public URL. Validation mirrors the limits the chat frontends rely on:
// 10MB default cap and the JPG/PNG/PDF allow-list checked on both the file
// extension and the declared MIME type.
func (s *AttachmentService) Save(file *multipart.FileHeader) (*StoredFile, error) {
	if file == nil {
		return nil, errors.NewMissingFileError()
	}
	if file.Size > s.maxSize {
		return nil, errors.NewPayloadTooLargeError(s.maxSize)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	contentType := file.Header.Get("Content-Type")
	if !s.allowed[ext] || !s.allowedMime(contentType) {
		return nil, errors.NewUnsupportedMediaTypeError()
	}

	nombre := fmt.Sprintf("%d-%s",
		time.Now().UnixMilli(),
		whitespacePattern.ReplaceAllString(filepath.Base(file.Filename), "_"),
	)

	src, err := file.Open()
	if err != nil {
		return nil, errors.NewInternalServerError("UPLOAD_FAILED", "No se pudo leer el archivo")
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, nombre))
	if err != nil {
		return nil, errors.NewInternalServerError("UPLOAD_FAILED", "No se pudo guardar el archivo")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, errors.NewInternalServerError("UPLOAD_FAILED", "No se pudo guardar el archivo")
	}

	return &StoredFile{
		Nombre: nombre,
		URL:    fmt.Sprintf("%s/%s%s", s.baseURL, uploadsMarker, nombre),
		Tipo:   contentType,
	}, nil
}

// allowedMime reports whether the declared content type carries one of the
// allowed format tokens (image/jpeg, image/png, application/pdf, ...)
func (s *AttachmentService) allowedMime(contentType string) bool {
	ct := strings.ToLower(contentType)
	for token := range s.allowed {
		if strings.Contains(ct, token) {
			return true
		}
	}
	return false
}

// Resolve maps a stored filename to its path on disk for download. Names that
// try to escape the uploads directory are rejected.
func (s *AttachmentService) Resolve(nombre string) (string, error) {
	if nombre == "" || nombre != filepath.Base(nombre) {
		return "", errors.NewBadRequestError("INVALID_FILENAME", "Nombre de archivo inválido")
	}

	path := filepath.Join(s.dir, nombre)
	if _, err := os.Stat(path); err != nil {
		// A missing download target is reported as 500, matching what the
		// frontends already handle
		return "", errors.NewError(500, "NOT_FOUND", "Archivo no encontrado")
	}
	return path, nil
}

// RemoveConversationFiles scans message bodies for uploads/ references and
// deletes the referenced files. Best effort: a missing file is not an error
// and a failed deletion is logged, never surfaced.
func (s *AttachmentService) RemoveConversationFiles(messages []models.ChatMessage) int {
	removed := 0
	for _, msg := range messages {
		idx := strings.Index(msg.Mensaje, uploadsMarker)
		if idx < 0 {
			continue
		}

		nombre := filepath.Base(msg.Mensaje[idx+len(uploadsMarker):])
		if nombre == "." || nombre == string(filepath.Separator) {
			continue
		}

		path := filepath.Join(s.dir, nombre)
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				s.logger.LogError(err, "Failed to delete attachment file",
					"archivo", nombre,
					"cliente_id", msg.ClienteID,
				)
			}
			continue
		}

		removed++
		s.logger.Info("Attachment file deleted", "archivo", nombre, "cliente_id", msg.ClienteID)
	}
	return removed
}
