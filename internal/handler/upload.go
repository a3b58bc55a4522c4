package handler

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

const maxUploadSize = 5 << 20 // 5 MB

// allowedMIME maps accepted MIME types to their canonical file extension.
var allowedMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadHandler stores segment photos on local disk and serves them back.
type UploadHandler struct {
	uploadDir string // absolute or relative directory for stored images
}

// NewUploadHandler creates an UploadHandler that stores files in uploadDir.
func NewUploadHandler(uploadDir string) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir}
}

// saveImage stores the multipart "file" field under a UUID filename. The
// content type is sniffed from the data rather than trusted from the client.
// On failure the error response has been written and ok is false.
func (h *UploadHandler) saveImage(c *gin.Context) (filename string, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+1<<10)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file must not exceed 5 MB"})
			return "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid 'file' field"})
		return "", false
	}
	defer file.Close() //nolint:errcheck

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file must not exceed 5 MB"})
		return "", false
	}

	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf) //nolint:errcheck // short files are fine
	detected := http.DetectContentType(buf[:n])
	ext, allowed := allowedMIME[detected]
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported file type %q; allowed: JPEG, PNG, WebP", detected),
		})
		return "", false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return "", false
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return "", false
	}

	filename = uuid.New().String() + ext
	destPath := filepath.Join(h.uploadDir, filename)
	dst, err := os.Create(destPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return "", false
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(destPath) //nolint:errcheck // best-effort cleanup
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return "", false
	}

	return filename, true
}

// removeImage deletes a stored file, ignoring errors.
func (h *UploadHandler) removeImage(filename string) {
	_ = os.Remove(filepath.Join(h.uploadDir, filename)) //nolint:errcheck
}

// imageURL builds the public URL of a stored file from the request host.
func imageURL(c *gin.Context, filename string) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/v1/uploads/images/%s", scheme, c.Request.Host, filename)
}

// ServeImage handles GET /api/v1/uploads/images/:filename
//
// Serves the file from the upload directory. Returns 404 if not found.
func (h *UploadHandler) ServeImage(c *gin.Context) {
	filename := c.Param("filename")

	// Sanitize: prevent path traversal.
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	filePath := filepath.Join(h.uploadDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.File(filePath)
}
