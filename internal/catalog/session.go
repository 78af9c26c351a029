package catalog

import (
	"context"
	"slices"
	"sync"

	"car-showroom/internal/domain"

	"go.uber.org/zap"
)

// Source yields the current inventory or the reason it could not
type Source interface {
	Fetch(ctx context.Context) ([]domain.Car, error)
}

// State is a snapshot of a Session
type State struct {
	Items   []domain.Car
	Loading bool
	Err     string
}

// View is the filtered collection plus the facets of the full collection
type View struct {
	Items  []domain.Car `json:"items"`
	Total  int          `json:"total"`
	Facets Facets       `json:"facets"`
	Err    string       `json:"error,omitempty"`
}

// Session keeps the inventory loaded for one viewer. Loads are numbered and
// only the most recently started one may publish its result.
type Session struct {
	source Source
	logger *zap.Logger

	mu      sync.Mutex
	seq     uint64
	items   []domain.Car
	loading bool
	err     string
}

// NewSession creates an empty Session backed by source
func NewSession(source Source, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		source: source,
		logger: logger.With(zap.String("component", "catalog_session")),
		items:  []domain.Car{},
	}
}

// Load fetches the inventory. It reports whether the result was applied;
// a load overtaken by a newer one is discarded.
func (s *Session) Load(ctx context.Context) bool {
	s.mu.Lock()
	s.seq++
	ticket := s.seq
	s.loading = true
	s.mu.Unlock()

	items, err := s.source.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.seq {
		s.logger.Debug("Discarding stale catalog response",
			zap.Uint64("ticket", ticket),
			zap.Uint64("latest", s.seq),
		)
		return false
	}

	s.loading = false
	if err != nil {
		s.items = []domain.Car{}
		s.err = err.Error()
		return true
	}

	if len(items) == 0 {
		s.logger.Warn("Catalog endpoint returned no cars")
	}
	s.items = items
	s.err = ""
	return true
}

// Snapshot returns the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Items:   slices.Clone(s.items),
		Loading: s.loading,
		Err:     s.err,
	}
}

// View applies filters to the loaded inventory
func (s *Session) View(filters domain.FilterState) View {
	state := s.Snapshot()
	items := Query(state.Items, filters)
	return View{
		Items:  items,
		Total:  len(items),
		Facets: FacetsOf(state.Items),
		Err:    state.Err,
	}
}
