package product

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// AllowedImage reports whether filename has an accepted image extension.
func AllowedImage(filename string) bool {
	return allowedImageExt[strings.ToLower(filepath.Ext(filename))]
}

// ImageStore keeps uploaded product images in a flat directory under
// server-generated names.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

func (s *ImageStore) Dir() string { return s.dir }

// Save writes fh under a fresh uuid name keeping its extension. Files with a
// disallowed extension are skipped and reported with an empty name.
func (s *ImageStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil || fh.Filename == "" || !AllowedImage(fh.Filename) {
		return "", nil
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	return name, dst.Close()
}

// SaveAll stores every acceptable file. On failure the files already written
// by this call are removed.
func (s *ImageStore) SaveAll(files []*multipart.FileHeader) ([]string, error) {
	var names []string
	for _, fh := range files {
		name, err := s.Save(fh)
		if err != nil {
			s.RemoveAll(names)
			return nil, err
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *ImageStore) Remove(filename string) error {
	if filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid image name %q", filename)
	}
	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RemoveAll removes names and returns the first error encountered.
func (s *ImageStore) RemoveAll(names []string) error {
	var first error
	for _, n := range names {
		if err := s.Remove(n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
