package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/config"
	"github.com/straye-as/travel-crm-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStorageInterfaceCompliance(t *testing.T) {
	var _ storage.Storage = (*storage.LocalStorage)(nil)
	var _ storage.Storage = (*storage.AzureBlobStorage)(nil)
}

func testObject(filename string) storage.Object {
	return storage.Object{
		AgencyID:    uuid.New(),
		BookingID:   uuid.New(),
		Filename:    filename,
		ContentType: "application/pdf",
	}
}

func TestObject_Key(t *testing.T) {
	obj := testObject("Passport.PDF")

	key := obj.Key()

	assert.True(t, strings.HasPrefix(key, "agencies/"+obj.AgencyID.String()+"/bookings/"+obj.BookingID.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, obj.Key(), "every key is unique")
}

func TestNewLocalStorage_CreatesDirectory(t *testing.T) {
	basePath := filepath.Join(t.TempDir(), "uploads")

	ls, err := storage.NewLocalStorage(basePath, 0)
	require.NoError(t, err)
	assert.NotNil(t, ls)

	info, err := os.Stat(basePath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_PutOpenRemove(t *testing.T) {
	ls, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	require.NoError(t, err)
	ctx := context.Background()
	content := []byte("voucher contents")

	storagePath, size, err := ls.Put(ctx, testObject("voucher.pdf"), bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	reader, err := ls.Open(ctx, storagePath)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, content, got)

	require.NoError(t, ls.Remove(ctx, storagePath))
	_, err = ls.Open(ctx, storagePath)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	assert.NoError(t, ls.Remove(ctx, storagePath), "removing twice is fine")
}

func TestLocalStorage_PutTooLarge(t *testing.T) {
	base := t.TempDir()
	ls, err := storage.NewLocalStorage(base, 8)
	require.NoError(t, err)

	_, _, err = ls.Put(context.Background(), testObject("big.pdf"), strings.NewReader("more than eight bytes"))
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)
}

func TestLocalStorage_RejectsPathTraversal(t *testing.T) {
	ls, err := storage.NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = ls.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)

	err = ls.Remove(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestNewStorage(t *testing.T) {
	logger := zap.NewNop()

	s, err := storage.NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir(), MaxUploadSizeMB: 1}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, s)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "azure"}, logger)
	assert.Error(t, err)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "ftp"}, logger)
	assert.Error(t, err)
}
