package media

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"jewelfinder-go/internal/platform/logging"
)

// Options configures the normalizer bounds.
type Options struct {
	MaxEdge int
	Quality int
	Logger  *logging.Logger
}

// Normalizer bounds an image's resolution and re-encodes it to JPEG before
// transport. It never fails its caller: any decode or encode problem results
// in the original asset passing through unchanged.
type Normalizer struct {
	maxEdge int
	quality int
	logger  *logging.Logger
}

func NewNormalizer(opts Options) *Normalizer {
	maxEdge := opts.MaxEdge
	if maxEdge <= 0 {
		maxEdge = 1024
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Normalizer{
		maxEdge: maxEdge,
		quality: quality,
		logger:  logger,
	}
}

// Normalize decodes the asset, clamps the longer edge to the configured
// bound preserving aspect ratio, and re-encodes as JPEG regardless of the
// source format. The work runs on a separate goroutine so a slow decode
// cannot stall the caller past its context.
func (n *Normalizer) Normalize(ctx context.Context, asset Asset) Normalized {
	type result struct{ out Normalized }
	done := make(chan result, 1)

	go func() {
		done <- result{out: n.normalize(asset)}
	}()

	select {
	case <-ctx.Done():
		n.logger.WarnTag("MEDIA", "normalization cancelled: %v", ctx.Err())
		return passthrough(asset)
	case r := <-done:
		return r.out
	}
}

func (n *Normalizer) normalize(asset Asset) Normalized {
	src, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		n.logger.WarnTag("MEDIA", "decode failed, passing original through: %v", err)
		return passthrough(asset)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		n.logger.WarnTag("MEDIA", "invalid dimensions %dx%d, passing original through", width, height)
		return passthrough(asset)
	}

	targetW, targetH := clampEdge(width, height, n.maxEdge)

	out := src
	if targetW != width || targetH != height {
		scaled := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		n.logger.WarnTag("MEDIA", "encode failed, passing original through: %v", err)
		return passthrough(asset)
	}

	n.logger.DebugTag("MEDIA", "normalized %dx%d -> %dx%d (%d bytes)",
		width, height, targetW, targetH, buf.Len())

	return Normalized{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Name:   asset.Name,
		Width:  targetW,
		Height: targetH,
	}
}

// clampEdge scales dimensions so the longer edge does not exceed maxEdge,
// preserving aspect ratio. Dimensions already within bound are unchanged.
func clampEdge(width, height, maxEdge int) (int, int) {
	if width > height {
		if width > maxEdge {
			height = int(float64(height) * float64(maxEdge) / float64(width))
			width = maxEdge
		}
	} else {
		if height > maxEdge {
			width = int(float64(width) * float64(maxEdge) / float64(height))
			height = maxEdge
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

func passthrough(asset Asset) Normalized {
	return Normalized{
		Data:     asset.Data,
		MIME:     asset.MIME,
		Name:     asset.Name,
		Fallback: true,
	}
}
