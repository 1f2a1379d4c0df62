package sale

import (
	"context"
	"sync"

	"github.com/rovshanmuradov/yozoon/internal/events"
)

// UpdateFunc mutates a private working copy of the state and returns the
// events produced. A non-nil error discards the copy.
type UpdateFunc func(st *State) ([]events.Event, error)

// Store persists State with all-or-nothing commits. Implementations must
// serialize Update calls against each other.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Update(ctx context.Context, fn UpdateFunc) error
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	state   *State
	journal []events.Event
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

// NewMemoryStoreFrom seeds the store with a copy of st, e.g. a state read
// from chain that should be quoted against locally.
func NewMemoryStoreFrom(st *State) *MemoryStore {
	return &MemoryStore{state: st.Clone()}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.Clone()
	emitted, err := fn(work)
	if err != nil {
		return err
	}
	work.Version++
	m.state = work
	m.journal = append(m.journal, emitted...)
	return nil
}

// Journal returns every committed event in commit order.
func (m *MemoryStore) Journal() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.journal))
	copy(out, m.journal)
	return out
}
