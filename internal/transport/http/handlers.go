package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/domain/capture"
	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

const maxUploadBytes = 32 << 20

type handlers struct {
	svc    *app.Service
	logger *logging.Logger
}

func newHandlers(svc *app.Service, logger *logging.Logger) *handlers {
	return &handlers{svc: svc, logger: logger}
}

func (h *handlers) getSession(c *gin.Context) {
	respondOK(c, h.svc.Snapshot())
}

type textSearchRequest struct {
	Query string `json:"query"`
}

func (h *handlers) searchText(c *gin.Context) {
	var req textSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.SearchText(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) searchImage(c *gin.Context) {
	asset, err := h.formAsset(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	source := capture.FileSource(c.PostForm("source"))
	if source != capture.SourceDrop {
		source = capture.SourcePick
	}

	snap, err := h.svc.SearchImage(c.Request.Context(), source, asset)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) searchSketchUpload(c *gin.Context) {
	asset, err := h.formAsset(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.SearchSketchUpload(c.Request.Context(), asset)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

type strokeRequest struct {
	Points []capture.Point `json:"points"`
}

type sketchState struct {
	Tool    capture.Tool `json:"tool"`
	Strokes int          `json:"strokes"`
	Empty   bool         `json:"empty"`
}

func (h *handlers) currentSketchState() sketchState {
	canvas := h.svc.Canvas()
	return sketchState{
		Tool:    canvas.Tool(),
		Strokes: canvas.StrokeCount(),
		Empty:   canvas.Empty(),
	}
}

func (h *handlers) sketchStroke(c *gin.Context) {
	var req strokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	h.svc.Canvas().AddStroke(req.Points)
	respondOK(c, h.currentSketchState())
}

type toolRequest struct {
	Tool string `json:"tool"`
}

func (h *handlers) sketchTool(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Canvas().SetTool(capture.Tool(req.Tool)); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	respondOK(c, h.currentSketchState())
}

func (h *handlers) sketchUndo(c *gin.Context) {
	h.svc.Canvas().Undo()
	respondOK(c, h.currentSketchState())
}

func (h *handlers) sketchClear(c *gin.Context) {
	h.svc.Canvas().Clear()
	respondOK(c, h.currentSketchState())
}

func (h *handlers) searchSketchCanvas(c *gin.Context) {
	snap, err := h.svc.SearchSketch(c.Request.Context())
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) ocrRead(c *gin.Context) {
	asset, err := h.formAsset(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.ReadText(c.Request.Context(), asset, c.PostForm("mode"))
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) ocrConfirm(c *gin.Context) {
	var req textSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.ConfirmOCR(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) ocrCancel(c *gin.Context) {
	respondOK(c, h.svc.CancelOCR())
}

type indexRequest struct {
	Index int `json:"index"`
}

func (h *handlers) focus(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.Focus(req.Index)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) focusNext(c *gin.Context) {
	snap, err := h.svc.FocusNext()
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) focusPrev(c *gin.Context) {
	snap, err := h.svc.FocusPrev()
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) dismiss(c *gin.Context) {
	respondOK(c, h.svc.Dismiss())
}

func (h *handlers) findSimilar(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.FindSimilar(c.Request.Context(), req.Index)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	respondOK(c, snap)
}

func (h *handlers) getHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, records)
}

type systemStatus struct {
	Hostname    string  `json:"hostname"`
	UptimeSec   uint64  `json:"uptime_sec"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"mem_percent"`
	MemUsedMB   uint64  `json:"mem_used_mb"`
	GeneratedAt string  `json:"generated_at"`
}

func (h *handlers) getSystemStatus(c *gin.Context) {
	status := systemStatus{GeneratedAt: time.Now().Format(time.RFC3339)}

	if info, err := host.Info(); err == nil {
		status.Hostname = info.Hostname
		status.UptimeSec = info.Uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemPercent = vm.UsedPercent
		status.MemUsedMB = vm.Used / (1 << 20)
	}

	respondOK(c, status)
}

// formAsset extracts the uploaded file from a multipart request.
func (h *handlers) formAsset(c *gin.Context) (media.Asset, error) {
	const op = "http:upload"

	header, err := c.FormFile("file")
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindCapture, op, "missing file field", err)
	}
	if header.Size > maxUploadBytes {
		return media.Asset{}, errors.New(errors.KindCapture, op, "upload too large")
	}

	file, err := header.Open()
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindCapture, op, "open upload", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindCapture, op, "read upload", err)
	}

	return media.Asset{
		Data: data,
		MIME: header.Header.Get("Content-Type"),
		Name: header.Filename,
	}, nil
}
