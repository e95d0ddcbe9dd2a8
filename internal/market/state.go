package market

// State is the client-side view of the dashboard: the asset table plus the
// connection indicators shown above it.
type State struct {
	Assets           []Asset
	Loading          bool
	Error            string
	ConnectionStatus ConnectionStatus
}

// InitialState returns an empty, disconnected state.
func InitialState() State {
	return State{ConnectionStatus: StatusDisconnected}
}

// Clone returns a deep copy of s so snapshots can be handed out safely.
func (s State) Clone() State {
	out := s
	if s.Assets != nil {
		out.Assets = make([]Asset, len(s.Assets))
		for i, a := range s.Assets {
			out.Assets[i] = a.Clone()
		}
	}
	return out
}

// Find returns the asset with the given id.
func (s State) Find(id string) (Asset, bool) {
	for _, a := range s.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// The functions below are the reducers. Each takes the current state by value
// and returns the next one; none of them fail.

// ApplyPriceUpdate overwrites the price of the matching asset and any of the
// three percentage columns present in u. Updates for unknown ids return s
// unchanged.
func ApplyPriceUpdate(s State, u PriceUpdate) State {
	idx := -1
	for i := range s.Assets {
		if s.Assets[i].ID == u.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}

	assets := make([]Asset, len(s.Assets))
	copy(assets, s.Assets)

	a := assets[idx]
	a.Price = u.Price
	if u.PriceChanges.H1 != nil {
		a.PriceChange1h = *u.PriceChanges.H1
	}
	if u.PriceChanges.H24 != nil {
		a.PriceChange24h = *u.PriceChanges.H24
	}
	if u.PriceChanges.D7 != nil {
		a.PriceChange7d = *u.PriceChanges.D7
	}
	assets[idx] = a

	s.Assets = assets
	return s
}

// SetAssets replaces the whole collection and clears the loading flag.
func SetAssets(s State, assets []Asset) State {
	s.Assets = assets
	s.Loading = false
	return s
}

func SetLoading(s State, loading bool) State {
	s.Loading = loading
	return s
}

func SetError(s State, msg string) State {
	s.Error = msg
	return s
}

func SetConnectionStatus(s State, status ConnectionStatus) State {
	s.ConnectionStatus = status
	return s
}

// RefreshData marks the state as loading and clears the error. Fetching the
// new collection is up to the caller.
func RefreshData(s State) State {
	s.Loading = true
	s.Error = ""
	return s
}
