package service

import (
	"bytes"
	"context"
	"image"
	"strings"
	"testing"

	"bazaar/internal/config"
	"bazaar/internal/models"
	"bazaar/internal/storage"
	"bazaar/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskImageService(t *testing.T) (*ImageService, *storage.DiskStore) {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return NewImageService(store, &config.Config{ImageMaxUploadSizeMB: 1}), store
}

func TestStoreListingImage_DerivesThumbnail(t *testing.T) {
	svc, store := newDiskImageService(t)
	ctx := context.Background()

	content := testutil.TinyPNG(t, 1200, 800)
	artifacts, err := svc.StoreListingImage(ctx, ImageUpload{Filename: "bike.png", Content: content})
	require.NoError(t, err)
	require.NotEmpty(t, artifacts.ImageKey)
	require.NotEmpty(t, artifacts.ThumbnailKey)

	assert.True(t, strings.HasPrefix(artifacts.ImageKey, "listings/"))
	assert.True(t, strings.HasSuffix(artifacts.ImageKey, ".png"))
	assert.Equal(t, ThumbnailKeyFor(artifacts.ImageKey), artifacts.ThumbnailKey)

	stored, err := store.Get(ctx, artifacts.ImageKey)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	thumbBytes, err := store.Get(ctx, artifacts.ThumbnailKey)
	require.NoError(t, err)
	thumb, format, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.Equal(t, "png", format, "thumbnail keeps the source encoding")
	assert.LessOrEqual(t, thumb.Bounds().Dx(), ThumbnailMaxSize)
	assert.LessOrEqual(t, thumb.Bounds().Dy(), ThumbnailMaxSize)
	// 1200x800 scaled to fit 200x200 keeps aspect: 200x133.
	assert.Equal(t, 200, thumb.Bounds().Dx())
}

func TestStoreListingImage_SmallSourcePassesThroughUnscaled(t *testing.T) {
	svc, store := newDiskImageService(t)
	ctx := context.Background()

	artifacts, err := svc.StoreListingImage(ctx, ImageUpload{
		Filename: "icon.jpg",
		Content:  testutil.TinyJPEG(t, 120, 90),
	})
	require.NoError(t, err)
	require.NotEmpty(t, artifacts.ThumbnailKey)
	assert.True(t, strings.HasSuffix(artifacts.ThumbnailKey, "_thumb.jpg"))

	thumbBytes, err := store.Get(ctx, artifacts.ThumbnailKey)
	require.NoError(t, err)
	thumb, format, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 120, thumb.Bounds().Dx())
	assert.Equal(t, 90, thumb.Bounds().Dy())
}

func TestStoreListingImage_CorruptSourceKeepsOriginalWithoutThumbnail(t *testing.T) {
	svc, store := newDiskImageService(t)
	ctx := context.Background()

	content := []byte("this is not an image at all")
	artifacts, err := svc.StoreListingImage(ctx, ImageUpload{Filename: "broken.png", Content: content})
	require.NoError(t, err, "derivation failure must not reject the upload")
	assert.NotEmpty(t, artifacts.ImageKey)
	assert.Empty(t, artifacts.ThumbnailKey)

	stored, err := store.Get(ctx, artifacts.ImageKey)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestStoreListingImage_RejectsEmptyAndOversized(t *testing.T) {
	svc, _ := newDiskImageService(t)
	ctx := context.Background()

	_, err := svc.StoreListingImage(ctx, ImageUpload{Filename: "empty.png"})
	assertErrorCode(t, err, models.CodeValidation)

	_, err = svc.StoreListingImage(ctx, ImageUpload{
		Filename: "huge.png",
		Content:  make([]byte, 2*1024*1024),
	})
	assertErrorCode(t, err, models.CodeValidation)
}

func TestReplaceArtifacts_RemovesPreviousBlobs(t *testing.T) {
	svc, store := newDiskImageService(t)
	ctx := context.Background()

	first, err := svc.StoreListingImage(ctx, ImageUpload{Filename: "a.png", Content: testutil.TinyPNG(t, 300, 300)})
	require.NoError(t, err)

	second, err := svc.ReplaceArtifacts(ctx, first.ImageKey, first.ThumbnailKey, ImageUpload{
		Filename: "b.png",
		Content:  testutil.TinyPNG(t, 400, 400),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ImageKey, second.ImageKey)

	exists, err := store.Exists(ctx, first.ImageKey)
	require.NoError(t, err)
	assert.False(t, exists, "old image should be removed")
	exists, err = store.Exists(ctx, first.ThumbnailKey)
	require.NoError(t, err)
	assert.False(t, exists, "old thumbnail should be removed")

	exists, err = store.Exists(ctx, second.ImageKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPurgeArtifacts_IsIdempotent(t *testing.T) {
	svc, store := newDiskImageService(t)
	ctx := context.Background()

	artifacts, err := svc.StoreListingImage(ctx, ImageUpload{Filename: "c.png", Content: testutil.TinyPNG(t, 250, 250)})
	require.NoError(t, err)

	svc.PurgeArtifacts(ctx, artifacts.ImageKey, artifacts.ThumbnailKey)
	// Purging already removed blobs must not panic or fail.
	svc.PurgeArtifacts(ctx, artifacts.ImageKey, artifacts.ThumbnailKey)

	exists, err := store.Exists(ctx, artifacts.ImageKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestThumbnailKeyFor(t *testing.T) {
	assert.Equal(t, "listings/abc_thumb.png", ThumbnailKeyFor("listings/abc.png"))
	assert.Equal(t, "listings/abc_thumb.webp", ThumbnailKeyFor("listings/abc.webp"))
	assert.Equal(t, "noext_thumb", ThumbnailKeyFor("noext"))
}

func TestDeriveThumbnail_WebPStaysWebP(t *testing.T) {
	// Encode a source WebP via the service encoder, then derive from it.
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	content, err := encodeAs(src, "webp")
	require.NoError(t, err)

	thumbBytes, err := DeriveThumbnail(content)
	require.NoError(t, err)
	thumb, format, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 200, thumb.Bounds().Dx())
	assert.Equal(t, 150, thumb.Bounds().Dy())
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok, "expected *models.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
