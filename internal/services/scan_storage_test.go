package services

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/tcg-binder/internal/models"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestSaveScanNamesFileByBinderAndPrinting(t *testing.T) {
	store := NewScanStorage(t.TempDir())
	key := models.NewPriceQuoteKey("neo", "1", "foil")

	ref, err := store.SaveScan("kamigawa-1a2b3c4d", key, pngHeader)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^kamigawa-1a2b3c4d/neo-1-foil-[0-9a-f]{8}\.png$`), ref)

	data, err := os.ReadFile(store.Path(ref))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestSaveScanSniffsContentType(t *testing.T) {
	store := NewScanStorage(t.TempDir())
	key := models.NewPriceQuoteKey("dmu", "10", "")

	ref, err := store.SaveScan("b-1", key, jpegHeader)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(ref))

	tests := []struct {
		name string
		data []byte
	}{
		{"plain text", []byte("definitely not an image")},
		{"pdf", []byte("%PDF-1.7\n")},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SaveScan("b-1", key, tt.data)
			assert.ErrorIs(t, err, ErrUnsupportedImage)
		})
	}
}

func TestRemoveScans(t *testing.T) {
	root := t.TempDir()
	store := NewScanStorage(root)
	key := models.NewPriceQuoteKey("neo", "1", "")

	first, err := store.SaveScan("binder-a", key, pngHeader)
	require.NoError(t, err)
	second, err := store.SaveScan("binder-a", key, pngHeader)
	require.NoError(t, err)
	other, err := store.SaveScan("binder-b", key, pngHeader)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, store.RemoveScan(first))
	assert.NoFileExists(t, store.Path(first))
	assert.NoError(t, store.RemoveScan(first), "removing twice is fine")

	require.NoError(t, store.RemoveBinderScans("binder-a"))
	assert.NoDirExists(t, filepath.Join(root, "binder-a"))
	assert.FileExists(t, store.Path(other))
}

func TestScanPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := NewScanStorage(root)

	assert.Equal(t, filepath.Join(root, "etc", "passwd"), store.Path("../../etc/passwd"))
	assert.NoError(t, store.RemoveBinderScans("../.."))
	assert.DirExists(t, root)
}
