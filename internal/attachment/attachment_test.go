package attachment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

func TestMIMEType(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":      "image/jpeg",
		"notes.md":       "text/markdown",
		"report.pdf":     "application/pdf",
		"archive.tar.gz": "application/gzip",
		"slides.pptx":    "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"Makefile":       DefaultMIMEType,
		"data.unknown":   DefaultMIMEType,
	}
	for name, want := range tests {
		assert.Equal(t, want, MIMEType(name), name)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	blob, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", blob.Name)
	assert.Equal(t, "text/plain", blob.MIMEType)
	assert.Equal(t, []byte("hello"), blob.Data)

	_, err = Load(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = Load(dir)
	assert.Error(t, err)
}

func TestLoadAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte{1}, 0o600))
	require.NoError(t, os.WriteFile(b, []byte("x,y"), 0o600))

	blobs, err := LoadAll([]string{b, a})
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "text/csv", blobs[0].MIMEType)
	assert.Equal(t, "image/png", blobs[1].MIMEType)
}

func TestNormalize(t *testing.T) {
	blobs, err := Normalize([]model.FileBlob{
		{Name: "scan.webp", Data: []byte{1}},
		{Name: "x", MIMEType: "image/heic", Data: []byte{2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "image/webp", blobs[0].MIMEType)
	assert.Equal(t, "image/heic", blobs[1].MIMEType)

	_, err = Normalize([]model.FileBlob{{Name: "big.bin", Data: make([]byte, MaxSize+1)}})
	assert.ErrorIs(t, err, ErrTooLarge)
}
