package contentgen

import (
	"context"
	"fmt"

	"blogsmith/src/core/pipeline"
	"blogsmith/src/infrastructure/integrations/imagegen"
	"blogsmith/src/storage/minioctrl"
)

// Thumbnail dimensions match the blog's card layout.
const (
	thumbnailWidth  = 1200
	thumbnailHeight = 630
)

// ThumbnailGenerator produces a thumbnail through the image-generation API
// and stores the binary in the thumbnails bucket.
type ThumbnailGenerator struct {
	client *imagegen.Client
	minio  *minioctrl.MinioService
}

func NewThumbnailGenerator(client *imagegen.Client, minio *minioctrl.MinioService) *ThumbnailGenerator {
	return &ThumbnailGenerator{client: client, minio: minio}
}

var _ pipeline.Thumbnailer = (*ThumbnailGenerator)(nil)

func (g *ThumbnailGenerator) GenerateThumbnail(ctx context.Context, meta *pipeline.PostMeta, category pipeline.Category, prompt string) (*pipeline.Thumbnail, error) {
	if prompt == "" {
		prompt = defaultThumbnailPrompt(meta, category)
	}

	data, mimeType, err := g.client.Generate(ctx, prompt, thumbnailWidth, thumbnailHeight)
	if err != nil {
		return nil, err
	}

	if err := g.minio.EnsureBucketExists(ctx, minioctrl.ThumbnailsBucket); err != nil {
		return nil, err
	}

	objectName := meta.Slug + extensionFor(mimeType)
	if err := g.minio.PutObject(ctx, minioctrl.ThumbnailsBucket, objectName, mimeType, data); err != nil {
		return nil, err
	}

	return &pipeline.Thumbnail{
		Data:     data,
		MimeType: mimeType,
		Path:     g.minio.ObjectPath(minioctrl.ThumbnailsBucket, objectName),
	}, nil
}

func defaultThumbnailPrompt(meta *pipeline.PostMeta, category pipeline.Category) string {
	style := "clean flat illustration, muted colors"
	if category == pipeline.CategoryTech {
		style = "minimal isometric illustration, blueprint accents"
	}
	return fmt.Sprintf("Blog post cover image for %q. %s. No text in the image.", meta.Title, style)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
