package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// stepUnit is a ports.Unit that appends its name to a trace key in state,
// optionally failing instead.
type stepUnit struct {
	name string
	err  error
}

var traceKey = domain.NewKey[[]string]("test.trace")

func (s *stepUnit) Name() string { return s.name }

func (s *stepUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	if s.err != nil {
		return state, s.err
	}
	trace, _ := domain.Get(state, traceKey)
	return domain.With(state, traceKey, append(trace, s.name)), nil
}

func (s *stepUnit) Validate() error { return nil }

// recordingMetrics captures every metric call.
type recordingMetrics struct {
	mu        sync.Mutex
	latencies []recordedMetric
	counters  []recordedMetric
}

type recordedMetric struct {
	name   string
	value  float64
	labels map[string]string
}

func (m *recordingMetrics) RecordLatency(op string, d time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, recordedMetric{name: op, value: d.Seconds(), labels: labels})
}

func (m *recordingMetrics) RecordCounter(metric string, v float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, recordedMetric{name: metric, value: v, labels: labels})
}

func (m *recordingMetrics) RecordGauge(string, float64, map[string]string) {}

func (m *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}

func (m *recordingMetrics) latenciesFor(op string) []recordedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedMetric
	for _, l := range m.latencies {
		if l.name == op {
			out = append(out, l)
		}
	}
	return out
}

func (m *recordingMetrics) countersFor(metric string) []recordedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedMetric
	for _, c := range m.counters {
		if c.name == metric {
			out = append(out, c)
		}
	}
	return out
}

var _ ports.MetricsCollector = (*recordingMetrics)(nil)

// memoryStore implements the event, response, area and result stores in
// memory.
type memoryStore struct {
	mu        sync.Mutex
	events    map[string]bool
	records   map[string]domain.Event
	responses map[string][]domain.GuestResponse
	areas     map[string][]domain.SearchArea
	rankings  map[string]domain.RankingRun

	listErr error
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:    map[string]bool{},
		records:   map[string]domain.Event{},
		responses: map[string][]domain.GuestResponse{},
		areas:     map[string][]domain.SearchArea{},
		rankings:  map[string]domain.RankingRun{},
	}
}

func (s *memoryStore) EventExists(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID], nil
}

func (s *memoryStore) ListResponses(_ context.Context, eventID string) ([]domain.GuestResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.responses[eventID], nil
}

func (s *memoryStore) SaveResponse(_ context.Context, resp domain.GuestResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.EventID] = append(s.responses[resp.EventID], resp)
	return nil
}

func (s *memoryStore) ListAreas(_ context.Context, eventID string) ([]domain.SearchArea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.areas[eventID], nil
}

func (s *memoryStore) SaveRanking(_ context.Context, run domain.RankingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rankings[run.EventID] = run
	return nil
}

func (s *memoryStore) LatestRanking(_ context.Context, eventID string) (domain.RankingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.rankings[eventID]
	if !ok {
		return domain.RankingRun{}, domain.ErrRankingNotFound
	}
	return run, nil
}

func (s *memoryStore) CreateEvent(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.events[ev.ID] = true
	s.records[ev.ID] = ev
	s.areas[ev.ID] = ev.Areas
	return nil
}

func (s *memoryStore) GetEvent(_ context.Context, eventID string) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[eventID]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, nil
}

func (s *memoryStore) SaveSelection(_ context.Context, eventID string, sel domain.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.Selection = &sel
	s.records[eventID] = ev
	return nil
}

func (s *memoryStore) ClearSelection(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.Selection = nil
	s.records[eventID] = ev
	return nil
}

var (
	_ ports.EventStore    = (*memoryStore)(nil)
	_ ports.ResponseStore = (*memoryStore)(nil)
	_ ports.AreaStore     = (*memoryStore)(nil)
	_ ports.ResultStore   = (*memoryStore)(nil)
)

// staticSource returns a fixed candidate list and remembers the areas it
// was asked about.
type staticSource struct {
	candidates []domain.RestaurantCandidate
	err        error
	calls      int
}

func (s *staticSource) FindCandidates(_ context.Context, _ []domain.SearchArea) ([]domain.RestaurantCandidate, error) {
	s.calls++
	return s.candidates, s.err
}

var errBoom = errors.New("boom")
