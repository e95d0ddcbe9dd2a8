package market

import (
	"sync"

	"go.uber.org/zap"
)

// Store holds the dashboard State and fans every change out to observers.
// Mutations go through the reducers in state.go; readers get deep copies.
type Store struct {
	logger *zap.Logger

	mu    sync.RWMutex
	state State

	subMu sync.RWMutex
	subs  []chan State
}

// NewStore returns a Store seeded with InitialState.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger: logger,
		state:  InitialState(),
	}
}

// Snapshot returns a deep copy of the current state.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Clone()
}

// Subscribe returns a buffered channel that receives a snapshot after every
// change. Observers that fall behind miss intermediate snapshots.
func (st *Store) Subscribe() <-chan State {
	ch := make(chan State, 64)
	st.subMu.Lock()
	st.subs = append(st.subs, ch)
	st.subMu.Unlock()
	return ch
}

// Close closes every observer channel. The store must not be mutated after.
func (st *Store) Close() {
	st.subMu.Lock()
	for _, ch := range st.subs {
		close(ch)
	}
	st.subs = nil
	st.subMu.Unlock()
}

func (st *Store) ApplyPriceUpdate(u PriceUpdate) {
	st.update(func(s State) State { return ApplyPriceUpdate(s, u) })
}

func (st *Store) SetAssets(assets []Asset) {
	st.update(func(s State) State { return SetAssets(s, assets) })
}

func (st *Store) SetLoading(loading bool) {
	st.update(func(s State) State { return SetLoading(s, loading) })
}

func (st *Store) SetError(msg string) {
	st.update(func(s State) State { return SetError(s, msg) })
}

func (st *Store) SetConnectionStatus(status ConnectionStatus) {
	st.update(func(s State) State { return SetConnectionStatus(s, status) })
}

func (st *Store) RefreshData() {
	st.update(RefreshData)
}

func (st *Store) update(reduce func(State) State) {
	st.mu.Lock()
	st.state = reduce(st.state)
	snap := st.state.Clone()
	st.mu.Unlock()

	st.notify(snap)
}

// notify delivers snap to every observer without blocking.
func (st *Store) notify(snap State) {
	st.subMu.RLock()
	defer st.subMu.RUnlock()

	for _, ch := range st.subs {
		select {
		case ch <- snap:
		default:
			st.logger.Debug("store: dropping snapshot for slow observer")
		}
	}
}
