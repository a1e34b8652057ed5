package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"sync"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// Tool selects how a stroke paints.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous gesture on the canvas.
type Stroke struct {
	Points []Point `json:"points"`
	Width  float64 `json:"width"`
	Erase  bool    `json:"erase"`
}

// Canvas accumulates strokes and rasterizes them to a JPEG for dispatch.
// It is safe for concurrent use; every HTTP handler touching the sketch
// goes through one shared canvas per session.
type Canvas struct {
	mu          sync.Mutex
	width       int
	height      int
	strokeWidth float64
	tool        Tool
	strokes     []Stroke
	quality     int
	logger      *logging.Logger
}

// CanvasOptions configures the drawing surface.
type CanvasOptions struct {
	Width       int
	Height      int
	StrokeWidth float64
	Quality     int
	Logger      *logging.Logger
}

func NewCanvas(opts CanvasOptions) *Canvas {
	width := opts.Width
	if width <= 0 {
		width = 640
	}
	height := opts.Height
	if height <= 0 {
		height = 400
	}
	strokeWidth := opts.StrokeWidth
	if strokeWidth <= 0 {
		strokeWidth = 4
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Canvas{
		width:       width,
		height:      height,
		strokeWidth: strokeWidth,
		tool:        ToolPen,
		quality:     quality,
		logger:      logger,
	}
}

// SetTool switches between pen and eraser for subsequent strokes.
func (c *Canvas) SetTool(tool Tool) error {
	if tool != ToolPen && tool != ToolEraser {
		return errors.New(errors.KindCapture, "capture:sketch.tool", "unknown tool")
	}
	c.mu.Lock()
	c.tool = tool
	c.mu.Unlock()
	return nil
}

// Tool returns the currently selected tool.
func (c *Canvas) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// AddStroke appends a gesture drawn with the current tool. Strokes without
// points are ignored.
func (c *Canvas) AddStroke(points []Point) {
	if len(points) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = append(c.strokes, Stroke{
		Points: points,
		Width:  c.strokeWidth,
		Erase:  c.tool == ToolEraser,
	})
	c.logger.DebugTag("SKETCH", "stroke %d recorded (%d points, erase=%v)",
		len(c.strokes), len(points), c.tool == ToolEraser)
}

// Undo removes the most recent stroke, pen or eraser alike.
func (c *Canvas) Undo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.strokes) == 0 {
		return
	}
	c.strokes = c.strokes[:len(c.strokes)-1]
}

// Clear drops every stroke.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = nil
}

// Empty reports whether the canvas holds no visible drawing. A canvas with
// only eraser strokes is still empty.
func (c *Canvas) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emptyLocked()
}

func (c *Canvas) emptyLocked() bool {
	for _, s := range c.strokes {
		if !s.Erase && len(s.Points) > 0 {
			return false
		}
	}
	return true
}

// StrokeCount returns how many strokes are on the canvas.
func (c *Canvas) StrokeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.strokes)
}

// Export rasterizes the drawing onto a white background and encodes it as
// JPEG. Exporting an empty canvas is an error so a blank sheet never gets
// dispatched as a search.
func (c *Canvas) Export() (media.Asset, error) {
	const op = "capture:sketch.export"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.emptyLocked() {
		return media.Asset{}, errors.New(errors.KindCapture, op, "canvas is empty")
	}

	img := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for _, stroke := range c.strokes {
		paint := color.Color(color.Black)
		if stroke.Erase {
			paint = color.White
		}
		drawStroke(img, stroke, paint)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return media.Asset{}, errors.Wrap(errors.KindCapture, op, "encode sketch", err)
	}

	c.logger.DebugTag("SKETCH", "exported %d strokes as %d bytes", len(c.strokes), buf.Len())
	return media.Asset{Data: buf.Bytes(), MIME: "image/jpeg", Name: "sketch.jpg"}, nil
}

// drawStroke stamps a round brush along each segment of the stroke.
func drawStroke(img *image.RGBA, stroke Stroke, paint color.Color) {
	radius := stroke.Width / 2
	if radius < 0.5 {
		radius = 0.5
	}
	if len(stroke.Points) == 1 {
		stampCircle(img, stroke.Points[0], radius, paint)
		return
	}
	for i := 1; i < len(stroke.Points); i++ {
		stampSegment(img, stroke.Points[i-1], stroke.Points[i], radius, paint)
	}
}

func stampSegment(img *image.RGBA, from, to Point, radius float64, paint color.Color) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Hypot(dx, dy)
	steps := int(dist/(radius/2)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		stampCircle(img, Point{X: from.X + dx*t, Y: from.Y + dy*t}, radius, paint)
	}
}

func stampCircle(img *image.RGBA, center Point, radius float64, paint color.Color) {
	minX := int(math.Floor(center.X - radius))
	maxX := int(math.Ceil(center.X + radius))
	minY := int(math.Floor(center.Y - radius))
	maxY := int(math.Ceil(center.Y + radius))
	bounds := img.Bounds()
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			if math.Hypot(float64(x)-center.X, float64(y)-center.Y) <= radius {
				img.Set(x, y, paint)
			}
		}
	}
}
