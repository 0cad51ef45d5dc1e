package avatar

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	// 额外注册 webp、bmp、tiff 解码器
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultThumbnailSize    = 200
	DefaultThumbnailQuality = 90
)

// Resizer 将图片缩放并居中裁剪为 size×size 的 JPEG
type Resizer interface {
	Cover(data []byte, size, quality int) ([]byte, error)
	Name() string
}

// NewResizer 按引擎名称创建 Resizer
func NewResizer(engine string) (Resizer, error) {
	switch engine {
	case "", "imaging":
		return ImagingResizer{}, nil
	case "vips":
		return newVipsResizer()
	default:
		return nil, fmt.Errorf("unsupported thumbnail engine: %s", engine)
	}
}

// ImagingResizer 纯 Go 实现
type ImagingResizer struct{}

func (ImagingResizer) Name() string { return "imaging" }

func (ImagingResizer) Cover(data []byte, size, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	// JPEG 没有透明通道，铺白底
	flat := imaging.Overlay(imaging.New(size, size, color.White), thumb, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
