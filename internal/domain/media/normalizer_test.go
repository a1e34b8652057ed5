package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(&logging.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}

func TestNormalize_WithinBoundReencodesUnchangedDims(t *testing.T) {
	n := NewNormalizer(Options{MaxEdge: 1024, Quality: 80, Logger: testLogger(t)})

	src := encodePNG(t, 800, 600)
	out := n.Normalize(context.Background(), Asset{Data: src, MIME: "image/png", Name: "small.png"})

	assert.False(t, out.Fallback)
	assert.Equal(t, "image/jpeg", out.MIME)
	w, h := decodeDims(t, out.Data)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	// re-encoded, not the source bytes
	assert.NotEqual(t, src, out.Data)
}

func TestNormalize_ClampsLongerEdge(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		wantW, wantH int
	}{
		{"landscape", 2048, 1024, 1024, 512},
		{"portrait", 1000, 2000, 512, 1024},
		{"square oversize", 1500, 1500, 1024, 1024},
	}

	n := NewNormalizer(Options{MaxEdge: 1024, Quality: 80, Logger: testLogger(t)})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := encodePNG(t, tt.srcW, tt.srcH)
			out := n.Normalize(context.Background(), Asset{Data: src, MIME: "image/png"})

			require.False(t, out.Fallback)
			w, h := decodeDims(t, out.Data)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantW, out.Width)
			assert.Equal(t, tt.wantH, out.Height)
		})
	}
}

func TestNormalize_PreservesAspectRatioWithinOnePixel(t *testing.T) {
	n := NewNormalizer(Options{MaxEdge: 1024, Quality: 80, Logger: testLogger(t)})

	src := encodePNG(t, 1333, 2011)
	out := n.Normalize(context.Background(), Asset{Data: src, MIME: "image/png"})
	require.False(t, out.Fallback)

	w, h := decodeDims(t, out.Data)
	assert.Equal(t, 1024, h)

	expectedW := float64(1333) * 1024.0 / 2011.0
	assert.InDelta(t, expectedW, float64(w), 1.0)
}

func TestNormalize_UndecodableReturnsOriginal(t *testing.T) {
	n := NewNormalizer(Options{MaxEdge: 1024, Quality: 80, Logger: testLogger(t)})

	garbage := []byte("this is not an image at all")
	out := n.Normalize(context.Background(), Asset{Data: garbage, MIME: "image/jpeg", Name: "broken.jpg"})

	assert.True(t, out.Fallback)
	assert.Equal(t, garbage, out.Data)
	assert.Equal(t, "image/jpeg", out.MIME)
	assert.Equal(t, "broken.jpg", out.Name)
}

func TestNormalize_SourceJPEGStillReencoded(t *testing.T) {
	n := NewNormalizer(Options{MaxEdge: 1024, Quality: 80, Logger: testLogger(t)})

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	out := n.Normalize(context.Background(), Asset{Data: buf.Bytes(), MIME: "image/jpeg"})
	assert.False(t, out.Fallback)
	w, h := decodeDims(t, out.Data)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestClampEdge(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{1024, 1024, 1024, 1024, 1024},
		{1025, 1024, 1024, 1024, 1023},
		{100, 50, 1024, 100, 50},
		{4096, 1, 1024, 1024, 1},
	}

	for _, tt := range tests {
		gotW, gotH := clampEdge(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, gotW, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, gotH, "height for %dx%d", tt.w, tt.h)
	}
}
