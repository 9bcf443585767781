package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dromero86/macrovista/internal/models"
)

// fakeNarrativeStore is an in-memory NarrativeStore.
type fakeNarrativeStore struct {
	mu    sync.Mutex
	state *models.NarrativeState
	sets  int
	fail  bool
}

func newFakeNarrativeStore() *fakeNarrativeStore {
	return &fakeNarrativeStore{state: &models.NarrativeState{State: models.NarrativeNeutral}}
}

func (s *fakeNarrativeStore) Get(context.Context) (*models.NarrativeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *fakeNarrativeStore) Set(_ context.Context, state *models.NarrativeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("store unavailable")
	}
	s.state = state
	s.sets++
	return nil
}

// fakeNotifier records every delivered message.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (n *fakeNotifier) Send(_ context.Context, text string, _ bool) (*SendResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return &SendResult{Success: false, Error: "delivery failed"}, fmt.Errorf("delivery failed")
	}
	n.messages = append(n.messages, text)
	return &SendResult{Success: true, ID: fmt.Sprintf("msg-%d", len(n.messages))}, nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// fakeValueCache is an in-memory ValueCache.
type fakeValueCache struct {
	mu     sync.Mutex
	floats map[string]float64
	seen   map[string]bool
}

func newFakeValueCache() *fakeValueCache {
	return &fakeValueCache{
		floats: make(map[string]float64),
		seen:   make(map[string]bool),
	}
}

func (c *fakeValueCache) GetFloat(_ context.Context, key string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.floats[key]
	return v, ok, nil
}

func (c *fakeValueCache) SetFloat(_ context.Context, key string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floats[key] = value
	return nil
}

func (c *fakeValueCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[key], nil
}

func (c *fakeValueCache) MarkSeen(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = true
	return nil
}

// fakeObservationFeed serves fixed series per symbol and can fail per
// symbol.
type fakeObservationFeed struct {
	mu     sync.Mutex
	series map[string][]models.ObservationPoint
	errs   map[string]error
	calls  map[string]int
}

func newFakeObservationFeed() *fakeObservationFeed {
	return &fakeObservationFeed{
		series: make(map[string][]models.ObservationPoint),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeObservationFeed) FetchSeries(_ context.Context, symbol string) ([]models.ObservationPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.series[symbol], nil
}

// fakeRegimeProvider returns a fixed regime snapshot.
type fakeRegimeProvider struct {
	regime *models.MacroRegime
	err    error
}

func (p *fakeRegimeProvider) CurrentRegime(context.Context) (*models.MacroRegime, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.regime, nil
}
