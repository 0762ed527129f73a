package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const ToolImageFolder = "tool_images"

var (
	ErrFileType = errors.New("file type not allowed")
	ErrFileSize = errors.New("file too large")

	allowedImageExt = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}
	unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// AllowedImage reports whether name has an allowed image extension.
func AllowedImage(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return allowedImageExt[ext]
}

// SanitizeFilename reduces name to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFileChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// Uploader stores uploaded files under a root directory.
type Uploader struct {
	root     string
	maxBytes int64
}

func NewUploader(root string, maxBytes int64) *Uploader {
	return &Uploader{root: root, maxBytes: maxBytes}
}

func (u *Uploader) Root() string { return u.root }

// SaveImage validates fh and writes it to folder under a unique name. The
// returned path is relative to the upload root.
func (u *Uploader) SaveImage(fh *multipart.FileHeader, folder string) (string, error) {
	if !AllowedImage(fh.Filename) {
		return "", ErrFileType
	}
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return "", ErrFileSize
	}

	dir := filepath.Join(u.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := fmt.Sprintf("%s_%s", strings.ReplaceAll(uuid.NewString(), "-", ""), SanitizeFilename(fh.Filename))
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(folder, name)), nil
}

// Delete removes a stored file. Missing files and paths escaping the root
// are ignored.
func (u *Uploader) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	full := filepath.Join(u.root, filepath.FromSlash(rel))
	root, err := filepath.Abs(u.root)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
