package media

import (
	"fmt"
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	// Registers the webp decoder with image.Decode, which imaging uses.
	_ "golang.org/x/image/webp"
)

const (
	ThumbnailWidth  = 100
	ThumbnailHeight = 100
)

// Thumbnailer fits images into a fixed bounding box.
type Thumbnailer struct {
	Width  int
	Height int
}

// NewThumbnailer returns a thumbnailer for the 100x100 box.
func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{Width: ThumbnailWidth, Height: ThumbnailHeight}
}

// Generate decodes the image in r, fits it inside the bounding box keeping
// its aspect ratio, and encodes the result to w in the format named by ext.
// Images already inside the box are re-encoded at their own size.
func (t *Thumbnailer) Generate(r io.Reader, ext string, w io.Writer) error {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(src, t.Width, t.Height, imaging.Lanczos)

	if err := Encode(w, thumb, ext); err != nil {
		return fmt.Errorf("encode %s thumbnail: %w", ext, err)
	}
	return nil
}

// Encode writes img in the format named by ext. imaging has no webp encoder,
// so webp goes through nativewebp (lossless).
func Encode(w io.Writer, img image.Image, ext string) error {
	if ext == "webp" {
		return nativewebp.Encode(w, img, nil)
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, format)
}
