package dispatch

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

const (
	pathSearchText      = "/search/text"
	pathSearchImage     = "/search/image"
	pathSearchSketch    = "/search/sketch"
	pathOCRRead         = "/ocr/read"
	pathVoiceTranscribe = "/voice/transcribe"

	// Long deadline on purpose: the collaborator loads models lazily and the
	// first request after a cold start can take minutes.
	defaultTimeout = 300 * time.Second

	maxResponseBytes = 16 << 20
)

const timeoutMessage = "Search failed. Request timed out (Server is busy loading models)."

// Request describes one dispatch to the collaborator service. Query is used
// by the text endpoint; Asset by the image, sketch, OCR and voice endpoints.
// Fields carries extra form values such as the OCR mode.
type Request struct {
	Endpoint Endpoint
	Query    string
	Asset    *media.Normalized
	Fields   map[string]string
}

// ClientOptions configures a dispatcher client.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *logging.Logger
	HTTPClient *http.Client
}

// Client serializes requests for the collaborator service, classifies every
// failure, and parses responses tolerantly. At most one request should be
// in flight per session; the session layer enforces that.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Dispatch performs one request and always returns a terminal Outcome; it
// never panics or returns a Go error to the caller. Every failure is folded
// into a classified Failure the session can render.
func (c *Client) Dispatch(ctx context.Context, req Request) Outcome {
	started := time.Now()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		c.logger.ErrorTag("DISPATCH", "build request for %s failed: %v", req.Endpoint, err)
		return Fail(classify(err))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		failure := classify(err)
		c.logger.WarnTag("DISPATCH", "%s failed after %s: %s", req.Endpoint,
			time.Since(started).Round(time.Millisecond), failure.Class)
		return Fail(failure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Fail(classify(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := serverFailure(resp.StatusCode, decodeDetail(body))
		c.logger.WarnTag("DISPATCH", "%s returned status %d: %s", req.Endpoint, resp.StatusCode, failure.Detail)
		return Fail(failure)
	}

	c.logger.InfoTag("DISPATCH", "%s completed in %s", req.Endpoint,
		time.Since(started).Round(time.Millisecond))

	return c.parseResponse(req, body)
}

func (c *Client) parseResponse(req Request, body []byte) Outcome {
	if req.Endpoint == EndpointOCR {
		var ocr ocrResponse
		if err := sonic.Unmarshal(body, &ocr); err != nil {
			c.logger.WarnTag("DISPATCH", "unparseable ocr payload, treating as empty read")
			return ReviewNeeded(OcrReview{})
		}
		return ReviewNeeded(OcrReview{
			RawText:          ocr.RawText,
			CleanedQuery:     ocr.CleanedQuery,
			DetectedCategory: ocr.DetectedCategory,
		})
	}

	// refined_query rides alongside the results but stands on its own: the
	// server may propose one even when the result array is missing or odd
	refined := ""
	if req.Endpoint == EndpointText {
		var tr textResponse
		if err := sonic.Unmarshal(body, &tr); err == nil && RefinedDiffers(req.Query, tr.RefinedQuery) {
			refined = strings.TrimSpace(tr.RefinedQuery)
		}
	}

	items, ok := decodeResultList(body)
	if !ok {
		c.logger.WarnTag("DISPATCH", "unrecognized response shape from %s, treating as zero matches", req.Endpoint)
		return Success(nil, refined)
	}

	return Success(items, refined)
}

// Transcribe posts a recorded audio blob to the remote transcriber and
// returns the recognized text. Unlike Dispatch it reports errors directly;
// the voice session decides whether a local fallback transcript stands in.
func (c *Client) Transcribe(ctx context.Context, audio media.Asset) (string, error) {
	const op = "dispatch:transcribe"

	body, contentType, err := encodeMultipart(audioPart(audio), nil)
	if err != nil {
		return "", errors.Wrap(errors.KindDispatch, op, "encode audio payload", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathVoiceTranscribe, body)
	if err != nil {
		return "", errors.Wrap(errors.KindDispatch, op, "build request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(errors.KindDispatch, op, "post audio", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(errors.KindDispatch, op, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.KindDispatch, op,
			fmt.Sprintf("transcriber returned status %d", resp.StatusCode))
	}

	var tr transcribeResponse
	if err := sonic.Unmarshal(raw, &tr); err != nil {
		return "", errors.Wrap(errors.KindDispatch, op, "decode response", err)
	}
	return strings.TrimSpace(tr.Text), nil
}

// FetchAsset downloads a collaborator-hosted image such as a result's
// image_path so it can be re-dispatched for a similarity search.
func (c *Client) FetchAsset(ctx context.Context, path string) (media.Asset, error) {
	const op = "dispatch:fetch"

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindDispatch, op, "build request", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindDispatch, op, "get asset", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return media.Asset{}, errors.New(errors.KindDispatch, op,
			fmt.Sprintf("asset fetch returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return media.Asset{}, errors.Wrap(errors.KindDispatch, op, "read asset", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return media.Asset{Data: data, MIME: mime, Name: filenameFromPath(path)}, nil
}

func filenameFromPath(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 && idx+1 < len(path) {
		return path[idx+1:]
	}
	return "asset.jpg"
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	switch req.Endpoint {
	case EndpointText:
		payload, err := sonic.Marshal(map[string]string{"query": req.Query})
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+pathSearchText, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil

	case EndpointImage, EndpointSketch, EndpointOCR:
		if req.Asset == nil {
			return nil, errors.New(errors.KindDispatch, "dispatch:build", "endpoint requires an image payload")
		}
		body, contentType, err := encodeMultipart(imagePart(*req.Asset), req.Fields)
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+endpointPath(req.Endpoint), body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", contentType)
		return httpReq, nil

	default:
		return nil, errors.New(errors.KindDispatch, "dispatch:build",
			fmt.Sprintf("unknown endpoint %q", req.Endpoint))
	}
}

func endpointPath(e Endpoint) string {
	switch e {
	case EndpointText:
		return pathSearchText
	case EndpointImage:
		return pathSearchImage
	case EndpointSketch:
		return pathSearchSketch
	case EndpointOCR:
		return pathOCRRead
	}
	return ""
}

type filePart struct {
	field    string
	filename string
	mime     string
	data     []byte
}

func imagePart(asset media.Normalized) filePart {
	name := asset.Name
	if name == "" {
		name = "capture.jpg"
	}
	mime := asset.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	return filePart{field: "file", filename: name, mime: mime, data: asset.Data}
}

func audioPart(audio media.Asset) filePart {
	name := audio.Name
	if name == "" {
		name = "recording.webm"
	}
	mime := audio.MIME
	if mime == "" {
		mime = "application/octet-stream"
	}
	return filePart{field: "file", filename: name, mime: mime, data: audio.Data}
}

func encodeMultipart(part filePart, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, part.field, part.filename))
	header.Set("Content-Type", part.mime)
	fw, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(part.data); err != nil {
		return nil, "", err
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// classify folds a transport-level error into the failure taxonomy. Timeouts
// get the dedicated busy-server message; anything else is a transport fault.
func classify(err error) Failure {
	if isTimeout(err) {
		return Failure{Class: FailureTimeout, Message: timeoutMessage}
	}
	return Failure{
		Class:   FailureTransport,
		Message: fmt.Sprintf("Search failed. %v", err),
	}
}

func serverFailure(status int, detail string) Failure {
	message := fmt.Sprintf("Search failed. Server Error: %d", status)
	if detail != "" {
		message = fmt.Sprintf("Search failed. Server Error: %d - %s", status, detail)
	}
	return Failure{Class: FailureServer, Message: message, Status: status, Detail: detail}
}

func isTimeout(err error) bool {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return goerrors.As(err, &netErr) && netErr.Timeout()
}
