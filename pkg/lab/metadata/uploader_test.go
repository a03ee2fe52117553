package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-lab/token-lab-server/pkg/ipfs"
	"github.com/token-lab/token-lab-server/pkg/lab/config"
)

type fakePinner struct {
	pinnedFileName    string
	pinnedFileContent []byte
	pinnedJsonName    string
	pinnedJson        interface{}
}

func (f *fakePinner) PinFile(_ context.Context, fileName string, content io.Reader) (*ipfs.Pin, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.pinnedFileName = fileName
	f.pinnedFileContent = data
	return &ipfs.Pin{Cid: "QmImage"}, nil
}

func (f *fakePinner) PinJson(_ context.Context, name string, content interface{}) (*ipfs.Pin, error) {
	f.pinnedJsonName = name
	f.pinnedJson = content
	return &ipfs.Pin{Cid: "QmMetadata"}, nil
}

func setupUploader(t *testing.T) (*Uploader, *fakePinner) {
	pinner := &fakePinner{}
	conf := config.WithManualTestOverrides(&config.TestOverrides{})()
	return NewUploader(conf, pinner), pinner
}

func TestUpload_RemoteImage(t *testing.T) {
	uploader, pinner := setupUploader(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	url, err := uploader.Upload(context.Background(), "My Token", "MTK", server.URL+"/uploads/image.png?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmMetadata", url)

	assert.Equal(t, "image.png", pinner.pinnedFileName)
	assert.Equal(t, []byte("image-bytes"), pinner.pinnedFileContent)
	assert.Equal(t, "MTK-metadata.json", pinner.pinnedJsonName)

	doc, ok := pinner.pinnedJson.(*TokenMetadata)
	require.True(t, ok)
	assert.Equal(t, "My Token", doc.Name)
	assert.Equal(t, "MTK", doc.Symbol)
	assert.Equal(t, "Created with The Token Lab", doc.Description)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmImage", doc.Image)
}

func TestUpload_LocalImage(t *testing.T) {
	uploader, pinner := setupUploader(t)

	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("local-bytes"), 0o644))

	_, err := uploader.Upload(context.Background(), "My Token", "MTK", path)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", pinner.pinnedFileName)
	assert.Equal(t, []byte("local-bytes"), pinner.pinnedFileContent)
}

func TestUpload_RemoteImageNotFound(t *testing.T) {
	uploader, pinner := setupUploader(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := uploader.Upload(context.Background(), "My Token", "MTK", server.URL+"/missing.png")
	assert.Error(t, err)
	assert.Empty(t, pinner.pinnedFileName)
}

func TestUpload_LocalImageMissing(t *testing.T) {
	uploader, pinner := setupUploader(t)

	_, err := uploader.Upload(context.Background(), "My Token", "MTK", filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	assert.Empty(t, pinner.pinnedFileName)
}
