package apiutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UploadsURLPrefix is where the server exposes the uploads directory.
const UploadsURLPrefix = "/uploads"

var imageExtensions = []struct {
	mime string
	ext  string
}{
	{"image/png", ".png"},
	{"image/jpeg", ".jpg"},
	{"image/gif", ".gif"},
	{"image/webp", ".webp"},
}

// SaveImage sniffs an uploaded file, stores it under uploadsDir/subdir and
// returns its public URL. Only png, jpeg, gif and webp are accepted.
func SaveImage(fh *multipart.FileHeader, uploadsDir, subdir string, maxBytes int64) (string, error) {
	if fh.Size > maxBytes {
		return "", HandlerError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("%s must be at most %d MiB", fh.Filename, maxBytes>>20),
		}
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("sniff upload: %w", err)
	}
	ext := ""
	for _, candidate := range imageExtensions {
		if detected.Is(candidate.mime) {
			ext = candidate.ext
			break
		}
	}
	if ext == "" {
		return "", BadRequest("file must be a png, jpeg, gif or webp image")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	dir := filepath.Join(uploadsDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, maxBytes)); err != nil {
		dst.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}

	return path.Join(UploadsURLPrefix, subdir, name), nil
}

// RemoveUploads deletes files previously returned by SaveImage. Failures are
// logged, not returned.
func RemoveUploads(ctx context.Context, uploadsDir string, urls []string) {
	for _, url := range urls {
		rel, ok := strings.CutPrefix(url, UploadsURLPrefix+"/")
		if !ok {
			continue
		}
		name := filepath.Join(uploadsDir, filepath.FromSlash(path.Clean("/"+rel)))
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Ctx(ctx).Warn().Err(err).Str("file", name).Msg("Failed to remove upload")
		}
	}
}
