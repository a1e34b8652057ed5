package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jewelfinder-go/internal/domain/dispatch"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// Phase is the coarse lifecycle of a search session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseResults Phase = "results"
	PhaseError   Phase = "error"
	PhaseReview  Phase = "review"
)

// Origin records what produced the current result set, including similarity
// hops chained off an existing result.
type Origin struct {
	Endpoint dispatch.Endpoint `json:"endpoint"`
	Query    string            `json:"query,omitempty"`
	SourceID string            `json:"source_id,omitempty"`
}

// Focused is the sub-state for the result the user has opened.
type Focused struct {
	Index int                 `json:"index"`
	Item  dispatch.ResultItem `json:"item"`
}

// Snapshot is an immutable view of the session handed to transports.
type Snapshot struct {
	ID         string                `json:"id"`
	Phase      Phase                 `json:"phase"`
	Generation uint64                `json:"generation"`
	Query      string                `json:"query,omitempty"`
	Origin     Origin                `json:"origin"`
	Items      []dispatch.ResultItem `json:"items"`
	Searched   bool                  `json:"searched"`
	Message    string                `json:"message,omitempty"`
	Review     *dispatch.OcrReview   `json:"review,omitempty"`
	Focused    *Focused              `json:"focused,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Listener is notified after every state change with a fresh snapshot.
type Listener func(Snapshot)

// Session is the state machine behind one user's search activity. At most
// one request is outstanding at a time; each BeginSearch bumps a generation
// token and outcomes carrying a stale token are dropped so a superseded
// request can never overwrite newer results.
type Session struct {
	mu         sync.Mutex
	id         string
	phase      Phase
	generation uint64
	query      string
	origin     Origin
	items      []dispatch.ResultItem
	searched   bool
	message    string
	review     *dispatch.OcrReview
	reviewMode string
	focused    *Focused
	updatedAt  time.Time
	listener   Listener
	logger     *logging.Logger
}

// Options configures a session.
type Options struct {
	Listener Listener
	Logger   *logging.Logger
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Session{
		id:        uuid.NewString(),
		phase:     PhaseIdle,
		updatedAt: time.Now(),
		listener:  opts.Listener,
		logger:    logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// BeginSearch transitions to Pending and returns the generation token the
// eventual outcome must present. A newer BeginSearch supersedes any request
// still in flight.
func (s *Session) BeginSearch(origin Origin) uint64 {
	s.mu.Lock()

	s.generation++
	generation := s.generation
	s.phase = PhasePending
	s.origin = origin
	if origin.Query != "" {
		s.query = origin.Query
	}
	// prior results are gone the moment a new submit happens; a Pending
	// snapshot never shows a superseded search's matches
	s.items = nil
	s.searched = true
	s.message = ""
	s.review = nil
	s.focused = nil
	s.touchLocked()

	s.logger.InfoTag("SESSION", "search %d begun via %s", generation, origin.Endpoint)
	notify := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(notify)
	return generation
}

// ApplyOutcome resolves the pending request for the given generation. Stale
// generations are dropped silently so only the newest request can land.
func (s *Session) ApplyOutcome(generation uint64, outcome dispatch.Outcome) {
	s.mu.Lock()

	if generation != s.generation {
		s.logger.DebugTag("SESSION", "dropping stale outcome for search %d (current %d)",
			generation, s.generation)
		s.mu.Unlock()
		return
	}

	switch outcome.Kind {
	case dispatch.OutcomeSuccess:
		s.phase = PhaseResults
		s.items = outcome.Items
		s.searched = true
		s.message = ""
		if outcome.RefinedQuery != "" {
			s.logger.InfoTag("SESSION", "adopting refined query %q", outcome.RefinedQuery)
			s.query = outcome.RefinedQuery
		}

	case dispatch.OutcomeReview:
		s.phase = PhaseReview
		s.review = outcome.Review

	case dispatch.OutcomeFailure:
		s.phase = PhaseError
		s.items = nil
		s.searched = false
		if outcome.Failure != nil {
			s.message = outcome.Failure.Message
		} else {
			s.message = "Search failed."
		}
	}

	s.touchLocked()
	notify := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(notify)
}

// StageReview records recognized OCR text awaiting user confirmation along
// with the mode that produced it.
func (s *Session) StageReview(review dispatch.OcrReview, mode string) {
	s.mu.Lock()
	s.phase = PhaseReview
	s.review = &review
	s.reviewMode = mode
	s.touchLocked()
	notify := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(notify)
}

// ConfirmReview accepts the (possibly user-edited) recognized text and
// returns the query that should now be searched. The review is consumed.
func (s *Session) ConfirmReview(edited string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.review == nil {
		return "", errors.New(errors.KindSession, "session:review.confirm", "no review staged")
	}

	query := strings.TrimSpace(edited)
	if query == "" {
		query = strings.TrimSpace(s.review.CleanedQuery)
	}
	if query == "" {
		return "", errors.New(errors.KindSession, "session:review.confirm", "nothing to search")
	}

	s.review = nil
	s.reviewMode = ""
	return query, nil
}

// CancelReview discards staged OCR text without searching.
func (s *Session) CancelReview() {
	s.mu.Lock()
	s.review = nil
	s.reviewMode = ""
	if s.phase == PhaseReview {
		if s.searched {
			s.phase = PhaseResults
		} else {
			s.phase = PhaseIdle
		}
	}
	s.touchLocked()
	notify := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(notify)
}

// Focus opens the result at index for detailed viewing.
func (s *Session) Focus(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return errors.New(errors.KindSession, "session:focus", "index out of range")
	}
	s.focused = &Focused{Index: index, Item: s.items[index]}
	s.touchLocked()
	return nil
}

// Next advances focus to the following result, wrapping at the end.
func (s *Session) Next() error {
	return s.step(1)
}

// Prev moves focus to the preceding result, wrapping at the start.
func (s *Session) Prev() error {
	return s.step(-1)
}

func (s *Session) step(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focused == nil {
		return errors.New(errors.KindSession, "session:focus.step", "nothing focused")
	}
	if len(s.items) == 0 {
		return errors.New(errors.KindSession, "session:focus.step", "no results")
	}
	n := len(s.items)
	index := ((s.focused.Index+delta)%n + n) % n
	s.focused = &Focused{Index: index, Item: s.items[index]}
	s.touchLocked()
	return nil
}

// Dismiss closes the focused view.
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.focused = nil
	s.touchLocked()
	s.mu.Unlock()
}

// FocusedItem returns the focused result, if any.
func (s *Session) FocusedItem() (dispatch.ResultItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focused == nil {
		return dispatch.ResultItem{}, false
	}
	return s.focused.Item, true
}

// SimilarOrigin builds the provenance for a find-similar hop off the result
// at the given index.
func (s *Session) SimilarOrigin(index int) (Origin, dispatch.ResultItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return Origin{}, dispatch.ResultItem{}, errors.New(errors.KindSession,
			"session:similar", "index out of range")
	}
	item := s.items[index]
	return Origin{Endpoint: dispatch.EndpointImage, SourceID: item.ID}, item, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	items := make([]dispatch.ResultItem, len(s.items))
	copy(items, s.items)

	snap := Snapshot{
		ID:         s.id,
		Phase:      s.phase,
		Generation: s.generation,
		Query:      s.query,
		Origin:     s.origin,
		Items:      items,
		Searched:   s.searched,
		Message:    s.message,
		UpdatedAt:  s.updatedAt,
	}
	if s.review != nil {
		review := *s.review
		snap.Review = &review
	}
	if s.focused != nil {
		focused := *s.focused
		snap.Focused = &focused
	}
	return snap
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}

func (s *Session) emit(snap Snapshot) {
	if s.listener != nil {
		s.listener(snap)
	}
}
