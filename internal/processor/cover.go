package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	defaultCoverSize = 512
	defaultQuality   = 90
)

// ProcessorConfig holds configuration for cover normalization
type ProcessorConfig struct {
	Size    int
	Quality int
}

// CoverProcessor crops album art to a square and re-encodes it as JPEG,
// so every upload has a predictable size and format.
type CoverProcessor struct {
	logger *zap.Logger
	config ProcessorConfig
}

// NewCoverProcessor creates a processor producing 512x512 JPEG covers
func NewCoverProcessor(logger *zap.Logger) *CoverProcessor {
	return &CoverProcessor{
		logger: logger,
		config: ProcessorConfig{
			Size:    defaultCoverSize,
			Quality: defaultQuality,
		},
	}
}

// Process center-crops and resizes the image to a square cover
func (p *CoverProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	cover := imaging.Fill(img, p.config.Size, p.config.Size, imaging.Center, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, cover, &jpeg.Options{Quality: p.config.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Cover normalized",
		zap.Int("srcWidth", bounds.Dx()),
		zap.Int("srcHeight", bounds.Dy()),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
