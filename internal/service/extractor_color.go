package service

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

const (
	colorGrid = 16 // thumbnail side in pixels
	colorBins = 8  // histogram bins per channel
)

// ColorExtractor is a local, deterministic descriptor: a per-channel colour
// histogram followed by a grayscale thumbnail. It needs no network and
// serves offline deployments and tests.
type ColorExtractor struct{}

// NewColorExtractor creates a ColorExtractor.
func NewColorExtractor() *ColorExtractor {
	return &ColorExtractor{}
}

func (e *ColorExtractor) Model() string { return "color-histogram-v1" }

func (e *ColorExtractor) Dimensions() int {
	return 3*colorBins + colorGrid*colorGrid
}

func (e *ColorExtractor) Extract(ctx context.Context, imageData []byte) ([]float32, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	thumb := image.NewRGBA(image.Rect(0, 0, colorGrid, colorGrid))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float32, e.Dimensions())
	hist := out[:3*colorBins]
	gray := out[3*colorBins:]
	pixels := float32(colorGrid * colorGrid)

	for y := 0; y < colorGrid; y++ {
		for x := 0; x < colorGrid; x++ {
			off := thumb.PixOffset(x, y)
			r, g, b := thumb.Pix[off], thumb.Pix[off+1], thumb.Pix[off+2]
			hist[int(r)*colorBins/256] += 1 / pixels
			hist[colorBins+int(g)*colorBins/256] += 1 / pixels
			hist[2*colorBins+int(b)*colorBins/256] += 1 / pixels
			// ITU-R BT.601 luma
			gray[y*colorGrid+x] = (0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)) / 255
		}
	}
	return out, nil
}
