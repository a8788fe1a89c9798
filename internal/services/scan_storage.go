package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/models"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

// scanExtensions maps sniffed content types to the extension stored on disk
var scanExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ScanStorage keeps scanned card images on disk, one directory per binder.
// References are slash-separated paths relative to the storage root, e.g.
// "my-binder-1a2b3c4d/neo-1-foil-9f8e7d6c.png", and are served under /images/scanned.
type ScanStorage struct {
	storageDir string
}

// NewScanStorage creates the storage root if needed; an empty dir uses ./data/scanned_images
func NewScanStorage(storageDir string) *ScanStorage {
	if storageDir == "" {
		storageDir = "./data/scanned_images"
	}
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		logging.Sugar.Warnf("Scan storage: could not create %s: %v", storageDir, err)
	}
	return &ScanStorage{storageDir: storageDir}
}

// SaveScan stores the image for the variant identified by key inside the binder's directory and
// returns its reference. Only JPEG, PNG, WebP and GIF payloads are accepted.
func (s *ScanStorage) SaveScan(binderID string, key models.PriceQuoteKey, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data: %w", ErrUnsupportedImage)
	}
	contentType := http.DetectContentType(imageData)
	ext, ok := scanExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%s: %w", contentType, ErrUnsupportedImage)
	}

	binderDir := Slugify(binderID)
	if binderDir == "" {
		return "", fmt.Errorf("binder id %q is not a valid directory name", binderID)
	}
	if err := os.MkdirAll(filepath.Join(s.storageDir, binderDir), 0755); err != nil {
		return "", fmt.Errorf("failed to create scan directory: %w", err)
	}

	base := Slugify(fmt.Sprintf("%s %s %s", key.SetCode, key.CollectorNumber, key.Finish))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:binderIDSuffixLen]
	ref := path.Join(binderDir, base+"-"+suffix+ext)

	if err := os.WriteFile(s.Path(ref), imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to save scan: %w", err)
	}
	return ref, nil
}

// RemoveScan deletes one stored scan; a missing file is not an error
func (s *ScanStorage) RemoveScan(ref string) error {
	if err := os.Remove(s.Path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove scan %s: %w", ref, err)
	}
	return nil
}

// RemoveBinderScans deletes every scan stored for a binder
func (s *ScanStorage) RemoveBinderScans(binderID string) error {
	binderDir := Slugify(binderID)
	if binderDir == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.storageDir, binderDir)); err != nil {
		return fmt.Errorf("failed to remove scans of binder %s: %w", binderID, err)
	}
	return nil
}

// Path resolves a scan reference to its file path, never leaving the storage root
func (s *ScanStorage) Path(ref string) string {
	clean := path.Clean("/" + ref)
	return filepath.Join(s.storageDir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

// GetStorageDir returns the storage root
func (s *ScanStorage) GetStorageDir() string {
	return s.storageDir
}
