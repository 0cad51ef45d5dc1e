//go:build vips

package avatar

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

// VipsResizer 基于 libvips，需要 cgo 与系统 libvips
type VipsResizer struct{}

func newVipsResizer() (Resizer, error) {
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(nil)
	return VipsResizer{}, nil
}

func (VipsResizer) Name() string { return "vips" }

func (VipsResizer) Cover(data []byte, size, quality int) ([]byte, error) {
	img, err := vips.NewThumbnailFromBuffer(data, size, size, vips.InterestingCentre)
	if err != nil {
		return nil, fmt.Errorf("thumbnail from buffer: %w", err)
	}
	defer img.Close()

	if img.HasAlpha() {
		if err := img.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("flatten alpha: %w", err)
		}
	}

	out, _, err := img.ExportJpeg(&vips.JpegExportParams{
		Quality:       quality,
		StripMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export jpeg: %w", err)
	}
	return out, nil
}
