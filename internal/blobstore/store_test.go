package blobstore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io7m-com/sunburst/internal/messages"
	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), messages.New(), nil)
}

func blobOf(t *testing.T, data string) model.Blob {
	t.Helper()
	hash, err := model.HashOf(model.SHA2_256, strings.NewReader(data))
	require.NoError(t, err)
	return model.Blob{
		Size:        uint64(len(data)),
		ContentType: "text/plain",
		Hash:        hash,
	}
}

func TestWriteAndRead(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	require.NoError(t, store.Write(blob, strings.NewReader("Hello.")))

	path := store.BlobPath(blob.Hash)
	assert.True(t, strings.HasSuffix(path, ".b"))
	assert.Contains(t, path, filepath.Join("SHA2_256", "2D"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello."), data)

	// The written content hashes back to the declared hash.
	received, err := model.HashOf(model.SHA2_256, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, blob.Hash, received)

	// No temporary file survives.
	assert.NoFileExists(t, strings.TrimSuffix(path, ".b")+".t")
}

func TestWriteIdempotent(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	require.NoError(t, store.Write(blob, strings.NewReader("Hello.")))
	require.NoError(t, store.Write(blob, strings.NewReader("Hello.")))

	data, err := os.ReadFile(store.BlobPath(blob.Hash))
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello."), data)
}

func TestWriteTruncated(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	err := store.Write(blob, strings.NewReader("He"))
	require.Error(t, err)
	code, ok := errorcodes.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, errorcodes.ErrorHashMismatch, code)

	path := store.BlobPath(blob.Hash)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, strings.TrimSuffix(path, ".b")+".t")
}

func TestWriteWrongContent(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	err := store.Write(blob, strings.NewReader("Goodbye"))
	require.Error(t, err)
	code, _ := errorcodes.CodeOf(err)
	assert.Equal(t, errorcodes.ErrorHashMismatch, code)
	assert.NoFileExists(t, store.BlobPath(blob.Hash))
}

func TestWriteSizeMismatch(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")
	blob.Size = 100

	err := store.Write(blob, strings.NewReader("Hello."))
	require.Error(t, err)
	assert.NoFileExists(t, store.BlobPath(blob.Hash))
}

func TestDelete(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	// Deleting an absent blob is not an error.
	require.NoError(t, store.Delete(blob.Hash))

	require.NoError(t, store.Write(blob, strings.NewReader("Hello.")))
	require.NoError(t, store.Delete(blob.Hash))
	assert.NoFileExists(t, store.BlobPath(blob.Hash))
}

func TestVerify(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")
	require.NoError(t, store.Write(blob, strings.NewReader("Hello.")))

	require.NoError(t, store.Verify(blob.Hash))

	// Corrupt the committed file behind the store's back.
	require.NoError(t, os.WriteFile(store.BlobPath(blob.Hash), []byte("junk"), 0644))
	err := store.Verify(blob.Hash)
	require.Error(t, err)
	code, _ := errorcodes.CodeOf(err)
	assert.Equal(t, errorcodes.ErrorHashMismatch, code)
}

func TestConcurrentWritersSameHash(t *testing.T) {
	store := setupStore(t)
	blob := blobOf(t, "Hello.")

	var group sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		group.Add(1)
		go func(i int) {
			defer group.Done()
			errs[i] = store.Write(blob, strings.NewReader("Hello."))
		}(i)
	}
	group.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	data, err := os.ReadFile(store.BlobPath(blob.Hash))
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello."), data)
}
