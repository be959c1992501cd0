// Package imagestore keeps reference image blobs on the local data directory.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// ErrInvalidPath is returned for paths that escape the store root.
var ErrInvalidPath = errors.New("invalid image path")

// Local stores blobs under a root directory. Paths handed out are relative and slash-separated.
type Local struct {
	root string
	now  func() time.Time
}

// NewLocal creates a store rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir, now: time.Now}
}

// ReferencePath builds the storage path of a new reference image of a product:
// productos/id-<id>/referencias/<yyyymmdd>-<unixms>-<shortuuid>.<ext>
func (l *Local) ReferencePath(productID int32, filename, mimeType string) string {
	t := l.now()
	return fmt.Sprintf("productos/id-%d/referencias/%s-%d-%s.%s",
		productID, t.Format("20060102"), t.UnixMilli(), shortuuid.New(), extension(filename, mimeType))
}

// Save writes blob to path.
func (l *Local) Save(_ context.Context, path string, blob []byte) error {
	osPath, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(osPath), os.ModePerm); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}
	if err := os.WriteFile(osPath, blob, 0644); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	return nil
}

// Open reads the blob stored at path.
func (l *Local) Open(_ context.Context, path string) ([]byte, error) {
	osPath, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, "file not found")
		}
		return nil, errors.Wrap(err, "failed to open the file")
	}
	defer file.Close()
	blob, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the file")
	}
	return blob, nil
}

// Delete removes the blob at path. A missing file is not an error.
func (l *Local) Delete(_ context.Context, path string) error {
	osPath, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(osPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete file")
	}
	return nil
}

func (l *Local) resolve(path string) (string, error) {
	osPath := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(osPath) {
		return "", errors.Wrapf(ErrInvalidPath, "%q", path)
	}
	return filepath.Join(l.root, osPath), nil
}

var mimeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
}

// extension prefers the filename's extension and falls back to the mime type, then jpg.
func extension(filename, mimeType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if ext, ok := mimeExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return "jpg"
}
