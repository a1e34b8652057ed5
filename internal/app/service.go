package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"jewelfinder-go/internal/domain/cache"
	"jewelfinder-go/internal/domain/capture"
	"jewelfinder-go/internal/domain/dispatch"
	"jewelfinder-go/internal/domain/events"
	"jewelfinder-go/internal/domain/history"
	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/domain/session"
	"jewelfinder-go/internal/platform/config"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// Service wires the capture pipelines, the dispatcher and the session state
// machine together behind one façade the transports call into. History and
// cache are optional; a nil repository or store simply disables the concern.
type Service struct {
	cfg        *config.Config
	logger     *logging.Logger
	normalizer *media.Normalizer
	dispatcher *dispatch.Client
	files      *capture.FilePipeline
	canvas     *capture.Canvas
	sess       *session.Session
	repo       *history.Repository
	store      cache.Store
	bus        *events.Bus
	factory    capture.RecognizerFactory

	voiceMu sync.Mutex
	voice   *capture.VoiceSession
}

// Deps carries everything a service needs. Logger and Config are required;
// the rest defaults sensibly when nil.
type Deps struct {
	Config     *config.Config
	Logger     *logging.Logger
	Dispatcher *dispatch.Client
	History    *history.Repository
	Cache      cache.Store
	Bus        *events.Bus
	Factory    capture.RecognizerFactory
}

func NewService(deps Deps) *Service {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}

	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = dispatch.NewClient(dispatch.ClientOptions{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
			Logger:  logger,
		})
	}

	svc := &Service{
		cfg:    cfg,
		logger: logger,
		normalizer: media.NewNormalizer(media.Options{
			MaxEdge: cfg.Normalizer.MaxEdge,
			Quality: cfg.Normalizer.Quality,
			Logger:  logger,
		}),
		dispatcher: dispatcher,
		files:      capture.NewFilePipeline(logger),
		canvas: capture.NewCanvas(capture.CanvasOptions{
			Width:       cfg.Sketch.Width,
			Height:      cfg.Sketch.Height,
			StrokeWidth: cfg.Sketch.StrokeWidth,
			Quality:     cfg.Normalizer.Quality,
			Logger:      logger,
		}),
		repo:    deps.History,
		store:   deps.Cache,
		bus:     bus,
		factory: deps.Factory,
	}

	svc.sess = session.New(session.Options{
		Logger:   logger,
		Listener: bus.PublishSession,
	})
	return svc
}

// Bus exposes the event bus for transports that mirror state changes.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() session.Snapshot {
	return s.sess.Snapshot()
}

// SearchText runs a text query through the dispatcher.
func (s *Service) SearchText(ctx context.Context, query string) (session.Snapshot, error) {
	const op = "app:search.text"

	query = strings.TrimSpace(query)
	if query == "" {
		return s.sess.Snapshot(), errors.New(errors.KindSession, op, "empty query")
	}

	origin := session.Origin{Endpoint: dispatch.EndpointText, Query: query}
	s.execute(ctx, origin, dispatch.Request{Endpoint: dispatch.EndpointText, Query: query},
		cache.Key(string(dispatch.EndpointText), []byte(query)))
	return s.sess.Snapshot(), nil
}

// SearchImage normalizes a picked or dropped image and dispatches it.
func (s *Service) SearchImage(ctx context.Context, source capture.FileSource,
	asset media.Asset) (session.Snapshot, error) {
	accepted, err := s.files.Accept(source, asset)
	if err != nil {
		return s.sess.Snapshot(), err
	}

	normalized := s.normalizer.Normalize(ctx, accepted)
	origin := session.Origin{Endpoint: dispatch.EndpointImage}
	s.execute(ctx, origin,
		dispatch.Request{Endpoint: dispatch.EndpointImage, Asset: &normalized},
		cache.Key(string(dispatch.EndpointImage), normalized.Data))
	return s.sess.Snapshot(), nil
}

// SearchSketch exports the shared canvas and dispatches it.
func (s *Service) SearchSketch(ctx context.Context) (session.Snapshot, error) {
	exported, err := s.canvas.Export()
	if err != nil {
		return s.sess.Snapshot(), err
	}

	normalized := s.normalizer.Normalize(ctx, exported)
	origin := session.Origin{Endpoint: dispatch.EndpointSketch}
	s.execute(ctx, origin,
		dispatch.Request{Endpoint: dispatch.EndpointSketch, Asset: &normalized},
		cache.Key(string(dispatch.EndpointSketch), normalized.Data))
	return s.sess.Snapshot(), nil
}

// SearchSketchUpload dispatches a sketch the browser rendered itself.
func (s *Service) SearchSketchUpload(ctx context.Context, asset media.Asset) (session.Snapshot, error) {
	const op = "app:search.sketch"

	if asset.Size() == 0 {
		return s.sess.Snapshot(), errors.New(errors.KindCapture, op, "empty sketch")
	}

	normalized := s.normalizer.Normalize(ctx, asset)
	origin := session.Origin{Endpoint: dispatch.EndpointSketch}
	s.execute(ctx, origin,
		dispatch.Request{Endpoint: dispatch.EndpointSketch, Asset: &normalized},
		cache.Key(string(dispatch.EndpointSketch), normalized.Data))
	return s.sess.Snapshot(), nil
}

// ReadText sends an image through OCR and stages the recognized text for
// user confirmation. No search runs until the user confirms.
func (s *Service) ReadText(ctx context.Context, asset media.Asset, mode string) (session.Snapshot, error) {
	const op = "app:ocr.read"

	if asset.Size() == 0 {
		return s.sess.Snapshot(), errors.New(errors.KindCapture, op, "empty payload")
	}
	if mode != dispatch.OCRModeStandard && mode != dispatch.OCRModeLLM {
		mode = dispatch.OCRModeStandard
	}

	normalized := s.normalizer.Normalize(ctx, asset)
	outcome := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Endpoint: dispatch.EndpointOCR,
		Asset:    &normalized,
		Fields:   map[string]string{"mode": mode},
	})

	switch outcome.Kind {
	case dispatch.OutcomeReview:
		s.sess.StageReview(*outcome.Review, mode)
	case dispatch.OutcomeFailure:
		gen := s.sess.BeginSearch(session.Origin{Endpoint: dispatch.EndpointOCR})
		s.sess.ApplyOutcome(gen, outcome)
	}
	return s.sess.Snapshot(), nil
}

// ConfirmOCR accepts the reviewed text and runs it as a text search.
func (s *Service) ConfirmOCR(ctx context.Context, edited string) (session.Snapshot, error) {
	query, err := s.sess.ConfirmReview(edited)
	if err != nil {
		return s.sess.Snapshot(), err
	}
	return s.SearchText(ctx, query)
}

// CancelOCR discards the staged review.
func (s *Service) CancelOCR() session.Snapshot {
	s.sess.CancelReview()
	return s.sess.Snapshot()
}

// FindSimilar fetches the image behind the result at index and dispatches
// an image search carrying the source result's provenance.
func (s *Service) FindSimilar(ctx context.Context, index int) (session.Snapshot, error) {
	const op = "app:similar"

	origin, item, err := s.sess.SimilarOrigin(index)
	if err != nil {
		return s.sess.Snapshot(), err
	}
	if item.ImagePath == "" {
		return s.sess.Snapshot(), errors.New(errors.KindSession, op, "result has no image")
	}

	asset, err := s.dispatcher.FetchAsset(ctx, item.ImagePath)
	if err != nil {
		return s.sess.Snapshot(), err
	}

	normalized := s.normalizer.Normalize(ctx, asset)
	s.execute(ctx, origin,
		dispatch.Request{Endpoint: dispatch.EndpointImage, Asset: &normalized},
		cache.Key(string(dispatch.EndpointImage), normalized.Data))
	return s.sess.Snapshot(), nil
}

// Focus, FocusNext, FocusPrev and Dismiss manage the focused result.
func (s *Service) Focus(index int) (session.Snapshot, error) {
	err := s.sess.Focus(index)
	return s.sess.Snapshot(), err
}

func (s *Service) FocusNext() (session.Snapshot, error) {
	err := s.sess.Next()
	return s.sess.Snapshot(), err
}

func (s *Service) FocusPrev() (session.Snapshot, error) {
	err := s.sess.Prev()
	return s.sess.Snapshot(), err
}

func (s *Service) Dismiss() session.Snapshot {
	s.sess.Dismiss()
	return s.sess.Snapshot()
}

// Canvas exposes the shared sketch canvas to the HTTP layer.
func (s *Service) Canvas() *capture.Canvas {
	return s.canvas
}

// History returns recent searches, newest first. Empty when persistence is
// disabled.
func (s *Service) History(ctx context.Context, limit int) ([]history.Record, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.Recent(ctx, limit)
}

// StartVoice opens a microphone session, replacing any existing one.
func (s *Service) StartVoice(mimeType string) error {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()

	if s.voice != nil {
		_ = s.voice.Close()
	}
	s.voice = capture.NewVoiceSession(capture.VoiceOptions{
		Transcriber: s.dispatcher,
		Factory:     s.factory,
		Logger:      s.logger,
	})
	return s.voice.Start(mimeType)
}

// PushVoice feeds a recorded chunk and reports the interim transcript.
func (s *Service) PushVoice(ctx context.Context, chunk []byte) (string, error) {
	voice := s.currentVoice()
	if voice == nil {
		return "", errors.New(errors.KindVoice, "app:voice.push", "no voice session")
	}
	if err := voice.PushAudio(ctx, chunk); err != nil {
		return "", err
	}
	interim := voice.Transcript()
	if interim != "" {
		s.bus.PublishTranscript(events.TranscriptEvent{
			SessionID: s.sess.ID(),
			Text:      interim,
		})
	}
	return interim, nil
}

// StopVoice finalizes the recording, publishes the final transcript, and
// runs it as a text search.
func (s *Service) StopVoice(ctx context.Context) (session.Snapshot, string, error) {
	voice := s.currentVoice()
	if voice == nil {
		return s.sess.Snapshot(), "", errors.New(errors.KindVoice, "app:voice.stop", "no voice session")
	}

	text, err := voice.Stop(ctx)
	s.closeVoice()
	if err != nil {
		return s.sess.Snapshot(), "", err
	}

	s.bus.PublishTranscript(events.TranscriptEvent{
		SessionID: s.sess.ID(),
		Text:      text,
		Final:     true,
	})

	snap, err := s.SearchText(ctx, text)
	return snap, text, err
}

// RestartVoice discards the in-progress recording and starts over.
func (s *Service) RestartVoice() error {
	voice := s.currentVoice()
	if voice == nil {
		return errors.New(errors.KindVoice, "app:voice.restart", "no voice session")
	}
	return voice.Restart()
}

// CancelVoice abandons the recording and releases the microphone.
func (s *Service) CancelVoice() {
	s.closeVoice()
}

func (s *Service) currentVoice() *capture.VoiceSession {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	return s.voice
}

func (s *Service) closeVoice() {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	if s.voice != nil {
		_ = s.voice.Close()
		s.voice = nil
	}
}

// execute runs one search to completion: cache consult, dispatch, outcome
// application, history append. The generation token scopes the outcome so a
// superseding search cannot be overwritten by this one landing late.
func (s *Service) execute(ctx context.Context, origin session.Origin,
	req dispatch.Request, cacheKey string) {
	gen := s.sess.BeginSearch(origin)

	if outcome, ok := s.cachedOutcome(ctx, cacheKey); ok {
		s.logger.InfoTag("CACHE", "hit for %s", req.Endpoint)
		s.sess.ApplyOutcome(gen, outcome)
		return
	}

	outcome := s.dispatcher.Dispatch(ctx, req)
	s.sess.ApplyOutcome(gen, outcome)

	if outcome.Kind == dispatch.OutcomeSuccess {
		s.storeOutcome(ctx, cacheKey, outcome)
	}
	s.appendHistory(ctx, origin, outcome)
}

func (s *Service) cachedOutcome(ctx context.Context, key string) (dispatch.Outcome, bool) {
	if s.store == nil || key == "" {
		return dispatch.Outcome{}, false
	}
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return dispatch.Outcome{}, false
	}
	var outcome dispatch.Outcome
	if err := sonic.Unmarshal(raw, &outcome); err != nil {
		s.logger.WarnTag("CACHE", "corrupt entry dropped: %v", err)
		_ = s.store.Delete(ctx, key)
		return dispatch.Outcome{}, false
	}
	return outcome, true
}

func (s *Service) storeOutcome(ctx context.Context, key string, outcome dispatch.Outcome) {
	if s.store == nil || key == "" {
		return
	}
	raw, err := sonic.Marshal(outcome)
	if err != nil {
		return
	}
	ttl := time.Duration(0)
	if s.cfg != nil {
		ttl = s.cfg.Cache.TTL
	}
	if err := s.store.Set(ctx, key, raw, ttl); err != nil {
		s.logger.WarnTag("CACHE", "store failed: %v", err)
	}
}

func (s *Service) appendHistory(ctx context.Context, origin session.Origin, outcome dispatch.Outcome) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Append(ctx, s.sess.ID(), origin.Endpoint, origin.Query, outcome); err != nil {
		s.logger.WarnTag("HISTORY", "append failed: %v", err)
	}
}

// Close releases owned resources.
func (s *Service) Close() error {
	s.closeVoice()
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
