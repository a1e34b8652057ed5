package capture

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jewelfinder-go/internal/platform/errors"
)

func newTestCanvas(t *testing.T) *Canvas {
	t.Helper()
	return NewCanvas(CanvasOptions{
		Width:       200,
		Height:      150,
		StrokeWidth: 4,
		Logger:      testLogger(t),
	})
}

func TestCanvas_ExportEmptyRejected(t *testing.T) {
	canvas := newTestCanvas(t)

	_, err := canvas.Export()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindCapture))
}

func TestCanvas_ExportProducesJPEGAtCanvasSize(t *testing.T) {
	canvas := newTestCanvas(t)
	canvas.AddStroke([]Point{{X: 10, Y: 10}, {X: 100, Y: 80}})

	asset, err := canvas.Export()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", asset.MIME)
	assert.Equal(t, "sketch.jpg", asset.Name)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(asset.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestCanvas_UndoRemovesLastStroke(t *testing.T) {
	canvas := newTestCanvas(t)
	canvas.AddStroke([]Point{{X: 10, Y: 10}, {X: 20, Y: 20}})
	canvas.AddStroke([]Point{{X: 30, Y: 30}, {X: 40, Y: 40}})
	require.Equal(t, 2, canvas.StrokeCount())

	canvas.Undo()
	assert.Equal(t, 1, canvas.StrokeCount())
	canvas.Undo()
	assert.Equal(t, 0, canvas.StrokeCount())
	assert.True(t, canvas.Empty())

	// undo on empty is a no-op
	canvas.Undo()
	assert.Equal(t, 0, canvas.StrokeCount())
}

func TestCanvas_ClearEmptiesCanvas(t *testing.T) {
	canvas := newTestCanvas(t)
	canvas.AddStroke([]Point{{X: 10, Y: 10}, {X: 20, Y: 20}})
	canvas.Clear()

	assert.True(t, canvas.Empty())
	_, err := canvas.Export()
	assert.Error(t, err)
}

func TestCanvas_EraserOnlyCountsAsEmpty(t *testing.T) {
	canvas := newTestCanvas(t)
	require.NoError(t, canvas.SetTool(ToolEraser))
	canvas.AddStroke([]Point{{X: 10, Y: 10}, {X: 20, Y: 20}})

	assert.True(t, canvas.Empty())
	_, err := canvas.Export()
	assert.Error(t, err)
}

func TestCanvas_SetToolValidation(t *testing.T) {
	canvas := newTestCanvas(t)

	require.NoError(t, canvas.SetTool(ToolEraser))
	assert.Equal(t, ToolEraser, canvas.Tool())

	assert.Error(t, canvas.SetTool(Tool("spraycan")))
	assert.Equal(t, ToolEraser, canvas.Tool())
}

func TestCanvas_EraserRemovesInk(t *testing.T) {
	canvas := NewCanvas(CanvasOptions{
		Width:       100,
		Height:      100,
		StrokeWidth: 10,
		Quality:     95,
		Logger:      testLogger(t),
	})

	canvas.AddStroke([]Point{{X: 50, Y: 50}})
	require.NoError(t, canvas.SetTool(ToolEraser))
	canvas.AddStroke([]Point{{X: 50, Y: 50}})

	asset, err := canvas.Export()
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(50, 50).RGBA()
	// erased center should be close to white again
	assert.Greater(t, r, uint32(0xe000))
	assert.Greater(t, g, uint32(0xe000))
	assert.Greater(t, b, uint32(0xe000))
}

func TestCanvas_IgnoresEmptyStroke(t *testing.T) {
	canvas := newTestCanvas(t)
	canvas.AddStroke(nil)
	assert.Equal(t, 0, canvas.StrokeCount())
}
