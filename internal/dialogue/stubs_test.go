package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"
)

type stubSlots struct {
	mu     sync.Mutex
	byDate map[string][]string
	errs   map[string]error
	calls  []string
}

func newStubSlots() *stubSlots {
	return &stubSlots{byDate: map[string][]string{}, errs: map[string]error{}}
}

func (s *stubSlots) set(date string, slots ...string) *stubSlots {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDate[date] = slots
	return s
}

func (s *stubSlots) fail(date string, err error) *stubSlots {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[date] = err
	return s
}

func (s *stubSlots) SlotsFor(_ context.Context, _, _ string, date Date) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, date.String())
	if err := s.errs[date.String()]; err != nil {
		return nil, err
	}
	return append([]string(nil), s.byDate[date.String()]...), nil
}

// memStore is an in-memory AppointmentStore with compare-and-set semantics.
type memStore struct {
	mu        sync.Mutex
	appts     map[string]Appointment
	getErr    error
	updateErr error
	updates   int
	// beforeUpdate runs once, before the next update is applied.
	beforeUpdate func(*memStore)
}

func newMemStore(appts ...Appointment) *memStore {
	s := &memStore{appts: map[string]Appointment{}}
	for _, a := range appts {
		s.appts[a.ID] = a
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Appointment{}, s.getErr
	}
	a, ok := s.appts[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return a, nil
}

func (s *memStore) UpdateIfVersion(_ context.Context, next Appointment, expected int64) error {
	s.mu.Lock()
	if hook := s.beforeUpdate; hook != nil {
		s.beforeUpdate = nil
		s.mu.Unlock()
		hook(s)
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	cur, ok := s.appts[next.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if cur.Version != expected {
		return ErrVersionConflict
	}
	next.Version = expected + 1
	s.appts[next.ID] = next
	s.updates++
	return nil
}

func (s *memStore) get(id string) Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appts[id]
}

func (s *memStore) put(a Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appts[a.ID] = a
}

type memTurns struct {
	mu        sync.Mutex
	turns     []Turn
	appendErr error
	lastErr   error
}

func (m *memTurns) Append(_ context.Context, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.turns = append(m.turns, t)
	return nil
}

func (m *memTurns) Last(_ context.Context, id string, n int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastErr != nil {
		return nil, m.lastErr
	}
	var out []Turn
	for _, t := range m.turns {
		if t.AppointmentID == id {
			out = append(out, t)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (m *memTurns) all() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns...)
}

type stubResponder struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	calls   int
	system  string
	history []ChatMessage
}

func (r *stubResponder) Respond(ctx context.Context, system string, history []ChatMessage) (string, error) {
	r.mu.Lock()
	r.calls++
	r.system = system
	r.history = history
	block, reply, err := r.block, r.reply, r.err
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

func (r *stubResponder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errBackend = errors.New("backend down")

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
