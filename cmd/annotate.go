package cmd

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/facegate/facegate/internal/matching"
	"github.com/facegate/facegate/internal/recognize"
)

const (
	annotateMaxSize   = 1600
	annotateLineWidth = 3
)

// saveAnnotatedFrame decodes the frame, draws one box per detected face
// (green accept, red reject, yellow unknown), and writes it as JPEG.
func saveAnnotatedFrame(frame []byte, results []recognize.Result, outPath string) error {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, r := range results {
		drawBox(dst, r.BBox, annotateLineWidth, decisionColor(r.Decision))
	}

	resized := resizeForOutput(dst, annotateMaxSize)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, resized, &jpeg.Options{Quality: 90})
}

func decisionColor(d matching.Decision) color.RGBA {
	switch d {
	case matching.DecisionAccept:
		return color.RGBA{0, 200, 0, 255}
	case matching.DecisionUnknown:
		return color.RGBA{230, 200, 0, 255}
	default:
		return color.RGBA{220, 0, 0, 255}
	}
}

// resizeForOutput scales the image down to fit within maxSize while keeping
// the aspect ratio. Smaller images pass through untouched.
func resizeForOutput(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		newHeight = maxSize
		newWidth = width * maxSize / height
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}

// drawBox draws a rectangle at the given pixel coordinates.
func drawBox(dst *image.RGBA, bbox []float64, lineWidth int, c color.RGBA) {
	if len(bbox) != 4 {
		return
	}
	x1, y1, x2, y2 := int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])
	for w := range lineWidth {
		drawHLine(dst, x1, x2, y1+w, c)
		drawHLine(dst, x1, x2, y2-w, c)
		drawVLine(dst, y1, y2, x1+w, c)
		drawVLine(dst, y1, y2, x2-w, c)
	}
}
