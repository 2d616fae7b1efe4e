package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/jpeg" // some providers serve JPEG under a .png tile URL

	xdraw "golang.org/x/image/draw"

	"tileproxy/internal/style"
)

// Composite alpha-blends an overlay tile over a base tile and returns the
// result as PNG. Both inputs are normalized to RGBA at the canonical tile size
// first; overlay pixels with zero alpha leave the base untouched, fully opaque
// ones replace it.
func Composite(base, overlay []byte) ([]byte, error) {
	baseImg, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("decode base tile: %w", err)
	}
	overlayImg, _, err := image.Decode(bytes.NewReader(overlay))
	if err != nil {
		return nil, fmt.Errorf("decode overlay tile: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, style.TileSize, style.TileSize))
	draw.Draw(canvas, canvas.Bounds(), normalize(baseImg), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), normalize(overlayImg), image.Point{}, draw.Over)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode composite tile: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize converts to RGBA and rescales to the canonical tile size when an
// upstream returns non-standard dimensions.
func normalize(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, style.TileSize, style.TileSize))
	b := src.Bounds()
	if b.Dx() == style.TileSize && b.Dy() == style.TileSize {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
