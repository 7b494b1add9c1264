package encode

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Options control how a raw frame is turned into a transport-ready string.
type Options struct {
	// Format is the preferred output format. "jpeg" and "png" are
	// encodable; anything else takes the JPEG fallback path.
	Format  string
	Quality int
	// MaxWidth caps the streamed width; wider frames are downscaled
	// preserving aspect ratio. Frames are never upscaled.
	MaxWidth int
}

// Frame encodes an RGB image into a self-contained data URL and reports
// the MIME type actually used. It never fails: a request for an
// unsupported format is served as JPEG at slightly boosted quality, with
// the substitution visible in the returned MIME type.
func Frame(img image.Image, opts Options) (dataURL, mime string) {
	if opts.MaxWidth > 0 && img.Bounds().Dx() > opts.MaxWidth {
		img = downscale(img, opts.MaxWidth)
	}

	var buf bytes.Buffer
	switch strings.ToLower(opts.Format) {
	case "png":
		if err := png.Encode(&buf, img); err == nil {
			mime = "image/png"
		}
	case "jpeg", "jpg", "":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(opts.Quality)}); err == nil {
			mime = "image/jpeg"
		}
	}

	if mime == "" {
		buf.Reset()
		// A notch above the requested quality so the substituted format
		// is not visibly worse.
		q := clampQuality(opts.Quality + 5)
		_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
		mime = "image/jpeg"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), mime
}

func downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	ratio := float64(maxWidth) / float64(b.Dx())
	height := int(float64(b.Dy())*ratio + 0.5)
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
