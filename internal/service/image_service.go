package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"bazaar/internal/config"
	"bazaar/internal/models"
	"bazaar/internal/observability"
	"bazaar/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	ThumbnailMaxSize            = 200
	JPEGQuality                 = 82
	WebPQuality                 = 70
	ThumbnailSuffix             = "_thumb"
	listingImagePrefix          = "listings"
)

type ImageUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// StoredArtifacts holds the blob keys produced for one uploaded image.
// ThumbnailKey is empty when derivation failed; the original is still kept.
type StoredArtifacts struct {
	ImageKey     string
	ThumbnailKey string
}

type ImageService struct {
	blobs              storage.BlobStore
	maxUploadSizeBytes int64
}

func NewImageService(blobs storage.BlobStore, cfg *config.Config) *ImageService {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &ImageService{
		blobs:              blobs,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// StoreListingImage persists the uploaded bytes and derives a thumbnail next
// to them. A failed derivation is logged and counted but never rejects the
// upload; callers get an empty ThumbnailKey in that case.
func (s *ImageService) StoreListingImage(ctx context.Context, in ImageUpload) (StoredArtifacts, error) {
	if len(in.Content) == 0 {
		return StoredArtifacts{}, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return StoredArtifacts{}, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	imageKey := buildImageKey(in.Filename, in.Content)
	if err := s.blobs.Put(ctx, imageKey, in.Content); err != nil {
		observability.ArtifactOperations.WithLabelValues("put", "error").Inc()
		return StoredArtifacts{}, models.NewInternalError(err)
	}
	observability.ArtifactOperations.WithLabelValues("put", "success").Inc()

	out := StoredArtifacts{ImageKey: imageKey}

	thumbBytes, err := DeriveThumbnail(in.Content)
	if err != nil {
		observability.ThumbnailDerivations.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "thumbnail derivation failed", "image_key", imageKey, "error", err)
		return out, nil
	}
	thumbKey := ThumbnailKeyFor(imageKey)
	if err := s.blobs.Put(ctx, thumbKey, thumbBytes); err != nil {
		observability.ThumbnailDerivations.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "thumbnail write failed", "thumbnail_key", thumbKey, "error", err)
		return out, nil
	}
	observability.ThumbnailDerivations.WithLabelValues("success").Inc()
	out.ThumbnailKey = thumbKey
	return out, nil
}

// ReplaceArtifacts stores the new upload and removes the previous blobs.
// Removal of the old files is best effort.
func (s *ImageService) ReplaceArtifacts(ctx context.Context, oldImageKey, oldThumbnailKey string, in ImageUpload) (StoredArtifacts, error) {
	out, err := s.StoreListingImage(ctx, in)
	if err != nil {
		return StoredArtifacts{}, err
	}
	s.PurgeArtifacts(ctx, oldImageKey, oldThumbnailKey)
	return out, nil
}

// PurgeArtifacts deletes stored blobs for a listing. Missing blobs and
// transient store errors are tolerated; purging never fails the caller.
func (s *ImageService) PurgeArtifacts(ctx context.Context, imageKey, thumbnailKey string) {
	for _, key := range []string{imageKey, thumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			observability.ArtifactOperations.WithLabelValues("delete", "error").Inc()
			slog.WarnContext(ctx, "artifact delete failed", "key", key, "error", err)
			continue
		}
		observability.ArtifactOperations.WithLabelValues("delete", "success").Inc()
	}
}

func (s *ImageService) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, models.NewNotFoundError("Image", key)
	}
	return data, nil
}

// DeriveThumbnail decodes the source image, scales it down to fit within
// ThumbnailMaxSize on both axes preserving aspect ratio, and re-encodes it
// in the source encoding. Images already within bounds pass through unscaled.
func DeriveThumbnail(content []byte) ([]byte, error) {
	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	thumb := resizeToFit(decoded, ThumbnailMaxSize, ThumbnailMaxSize)
	encoded, err := encodeAs(thumb, format)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail as %s: %w", format, err)
	}
	return encoded, nil
}

// ThumbnailKeyFor derives the thumbnail blob key from the image key:
// the same directory and extension with a ThumbnailSuffix on the base name.
func ThumbnailKeyFor(imageKey string) string {
	ext := path.Ext(imageKey)
	base := strings.TrimSuffix(imageKey, ext)
	return base + ThumbnailSuffix + ext
}

func buildImageKey(filename string, content []byte) string {
	ext := strings.ToLower(path.Ext(filename))
	if !isKnownImageExt(ext) {
		ext = extensionForContent(content)
	}
	return path.Join(listingImagePrefix, uuid.NewString()+ext)
}

func isKnownImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}

func extensionForContent(content []byte) string {
	switch http.DetectContentType(content) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeAs(img image.Image, format string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, err
		}
	case "png":
		if err := png.Encode(buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(buf, img, nil); err != nil {
			return nil, err
		}
	case "webp":
		if err := webp.Encode(buf, img, &webp.Options{Quality: WebPQuality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}
