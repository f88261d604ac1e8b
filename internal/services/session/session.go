// Package session implements the edit/save/cancel protocol for batch
// editing allocations of one portfolio.
package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

// State of an edit session.
type State int

const (
	StateView State = iota
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	default:
		return "view"
	}
}

const defaultSaveConcurrency = 4

var (
	// ErrNotEditing is returned by buffer operations while in view state.
	ErrNotEditing = errors.New("session is not editing")

	// ErrSaveInProgress is returned when the buffer is touched during a save.
	ErrSaveInProgress = errors.New("save already in progress")
)

// SaveReport lists the outcome of each per-holding write issued by Save.
type SaveReport struct {
	Portfolio string   `json:"portfolio"`
	Total     float64  `json:"total"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// Option configures a Session.
type Option func(*Session)

// WithSaveConcurrency bounds the number of in-flight writes during Save.
func WithSaveConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Session holds the working buffer of one portfolio. The committed store is
// only written by Save.
type Session struct {
	store       interfaces.HoldingStore
	logger      *common.Logger
	concurrency int

	mu       sync.Mutex
	state    State
	active   string
	buffer   []models.Holding
	baseline map[string]float64 // committed allocation per holding id
	saving   bool
}

// New creates a session in view state over store.
func New(store interfaces.HoldingStore, logger *common.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Session{
		store:       store,
		logger:      logger,
		concurrency: defaultSaveConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the name of the portfolio the session is looking at.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Begin makes name the active portfolio and snapshots its committed holdings
// into the working buffer. Any previous buffer is discarded.
func (s *Session) Begin(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.beginLocked(name)
	return nil
}

func (s *Session) beginLocked(name string) {
	s.active = name
	s.buffer = s.store.Holdings(name)
	s.baseline = make(map[string]float64, len(s.buffer))
	for _, h := range s.buffer {
		s.baseline[h.ID] = h.Allocation()
	}
	s.state = StateEditing
	s.logger.Debug().Str("portfolio", name).Int("holdings", len(s.buffer)).Msg("Edit session started")
}

// Toggle flips between view and editing for name. Leaving editing this way
// discards the buffer.
func (s *Session) Toggle(name string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return s.state, ErrSaveInProgress
	}
	if s.state == StateEditing && s.active == name {
		s.discardLocked()
		return s.state, nil
	}
	s.beginLocked(name)
	return s.state, nil
}

// SetAllocation changes one holding in the working buffer. Non-finite values
// become 0 and the result is clamped.
func (s *Session) SetAllocation(holdingID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	if s.state != StateEditing {
		return ErrNotEditing
	}
	for i := range s.buffer {
		if s.buffer[i].ID == holdingID {
			s.buffer[i].AUMValue = models.Float(allocation.NormalizePercent(value))
			return nil
		}
	}
	return &models.ValidationError{Field: "holding", Message: "no holding " + holdingID + " in " + s.active}
}

// SetAllocationText is SetAllocation for typed input; unparsable text is 0.
func (s *Session) SetAllocationText(holdingID, raw string) error {
	return s.SetAllocation(holdingID, allocation.ParsePercentText(raw))
}

// Working returns a copy of the working buffer while editing, otherwise the
// committed holdings of the active portfolio.
func (s *Session) Working() []models.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEditing {
		return models.CloneHoldings(s.buffer)
	}
	return s.store.Holdings(s.active)
}

// Stats are computed on the buffer while editing.
func (s *Session) Stats() models.PortfolioStats {
	return allocation.WeightedPortfolioStats(s.Working())
}

// Cancel discards the working buffer and returns to view. The store is not touched.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.discardLocked()
	return nil
}

// SwitchPortfolio makes name active. Unsaved edits are discarded.
func (s *Session) SwitchPortfolio(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	if s.state == StateEditing && s.active != name {
		s.logger.Debug().Str("portfolio", s.active).Msg("Discarding unsaved edits")
	}
	s.discardLocked()
	s.active = name
	return nil
}

func (s *Session) discardLocked() {
	s.buffer = nil
	s.baseline = nil
	s.state = StateView
}

type pendingWrite struct {
	id    string
	value float64
}

// Save validates the buffer total and writes every changed holding
// concurrently, waiting for all writes. On any failure the session stays in
// editing with the buffer intact and the returned PersistError lists the
// failed ids; holdings that did succeed are not rolled back. On success the
// store is reloaded and the session returns to view.
func (s *Session) Save(ctx context.Context) (*SaveReport, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	if s.state != StateEditing {
		s.mu.Unlock()
		return nil, ErrNotEditing
	}

	name := s.active
	total := allocation.HoldingsTotal(s.buffer)
	if allocation.OverBudget(total) {
		s.mu.Unlock()
		committed := allocation.HoldingsTotal(s.store.Holdings(name))
		s.logger.Info().Str("portfolio", name).Str("total", total.String()).Msg("Save rejected: allocation budget exceeded")
		return nil, &models.AllocationExceededError{
			Current:   committed.InexactFloat64(),
			Attempted: total.InexactFloat64(),
		}
	}

	var writes []pendingWrite
	for _, h := range s.buffer {
		if h.ID == "" {
			continue
		}
		if base, ok := s.baseline[h.ID]; ok && base == h.Allocation() {
			continue
		}
		writes = append(writes, pendingWrite{id: h.ID, value: h.Allocation()})
	}
	s.saving = true
	s.mu.Unlock()

	report := &SaveReport{Portfolio: name, Total: total.InexactFloat64()}
	errs := s.flush(ctx, writes, report)

	s.mu.Lock()
	s.saving = false

	if len(report.Failed) > 0 {
		for _, id := range report.Succeeded {
			for _, w := range writes {
				if w.id == id {
					s.baseline[id] = w.value
				}
			}
		}
		s.logger.Warn().
			Str("portfolio", name).
			Strs("failed", report.Failed).
			Int("succeeded", len(report.Succeeded)).
			Msg("Save partially failed")
		s.mu.Unlock()
		return report, &models.PersistError{Op: "save allocations", Failed: report.Failed, Err: errors.Join(errs...)}
	}

	s.logger.Info().Str("portfolio", name).Int("updated", len(report.Succeeded)).Msg("Allocations saved")
	s.discardLocked()
	s.mu.Unlock()

	if _, err := s.store.LoadPortfolios(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// flush issues the writes with bounded concurrency. Siblings are never
// cancelled when one fails.
func (s *Session) flush(ctx context.Context, writes []pendingWrite, report *SaveReport) []error {
	results := make([]error, len(writes))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, w := range writes {
		g.Go(func() error {
			_, err := s.store.UpdateHoldingAllocation(ctx, w.id, w.value)
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, w := range writes {
		if results[i] != nil {
			report.Failed = append(report.Failed, w.id)
			errs = append(errs, results[i])
			continue
		}
		report.Succeeded = append(report.Succeeded, w.id)
	}
	return errs
}
