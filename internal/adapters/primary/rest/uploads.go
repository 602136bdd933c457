package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const uploadsRoute = "/uploads/"

var allowedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// uploadStore écrit les fichiers sur disque, servis ensuite par GET /uploads/*.
type uploadStore struct {
	dir      string
	maxBytes int64
}

func newUploadStore(dir string, maxBytes int64) *uploadStore {
	if dir == "" {
		dir = "./uploads"
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &uploadStore{dir: dir, maxBytes: maxBytes}
}

// save renvoie le chemin public (ex: /uploads/<uuid>.png).
func (s *uploadStore) save(src io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedImageExt[ext] {
		return "", badRequestf("unsupported file type %q", ext)
	}

	// On vérifie le contenu réel, pas seulement l'extension
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", badRequestf("file is not an image")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext // Nom serveur : pas de collision, pas de path traversal
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return uploadsRoute + name, nil
}

// Upload : multipart, champ "file".
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.maxBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(err)
			return
		}
		_ = c.Error(badRequestf("missing multipart field \"file\": %v", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer f.Close()

	path, err := h.uploads.save(f, fh.Filename)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}
