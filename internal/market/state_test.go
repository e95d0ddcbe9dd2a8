package market

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func btcState() State {
	s := InitialState()
	s.Assets = []Asset{
		{ID: "bitcoin", Rank: 1, Name: "Bitcoin", Price: 50000, PriceChange1h: 0.5, PriceChange24h: 2.3, PriceChange7d: -1.2},
		{ID: "ethereum", Rank: 2, Name: "Ethereum", Price: 3000, PriceChange1h: -0.2, PriceChange24h: 1.5, PriceChange7d: 3.2},
	}
	return s
}

func TestApplyPriceUpdate_Scenario(t *testing.T) {
	s := btcState()

	next := ApplyPriceUpdate(s, PriceUpdate{
		ID:           "bitcoin",
		Price:        51000,
		PriceChanges: PriceChanges{H1: Float(0.8)},
	})

	btc, ok := next.Find("bitcoin")
	require.True(t, ok)
	assert.Equal(t, 51000.0, btc.Price)
	assert.Equal(t, 0.8, btc.PriceChange1h)
	assert.Equal(t, 2.3, btc.PriceChange24h)
	assert.Equal(t, -1.2, btc.PriceChange7d)

	// The input state is not mutated.
	orig, _ := s.Find("bitcoin")
	assert.Equal(t, 50000.0, orig.Price)
}

func TestApplyPriceUpdate_PartialChanges(t *testing.T) {
	s := btcState()
	before, _ := s.Find("ethereum")

	next := ApplyPriceUpdate(s, PriceUpdate{
		ID:           "ethereum",
		Price:        before.Price,
		PriceChanges: PriceChanges{H24: Float(1.5 + 1)},
	})

	after, _ := next.Find("ethereum")
	assert.Equal(t, before.Price, after.Price)
	assert.Equal(t, before.PriceChange1h, after.PriceChange1h)
	assert.Equal(t, before.PriceChange7d, after.PriceChange7d)
	assert.Equal(t, 2.5, after.PriceChange24h)
}

func TestApplyPriceUpdate_UnknownID(t *testing.T) {
	s := btcState()
	want, err := json.Marshal(s)
	require.NoError(t, err)

	next := ApplyPriceUpdate(s, PriceUpdate{
		ID:           "dogecoin",
		Price:        1,
		PriceChanges: PriceChanges{H1: Float(9), H24: Float(9), D7: Float(9)},
	})

	got, err := json.Marshal(next)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestApplyPriceUpdate_ArrivalOrderWins(t *testing.T) {
	// Updates carry no event time; whichever is applied last sticks.
	s := btcState()
	newer := PriceUpdate{ID: "bitcoin", Price: 52000}
	older := PriceUpdate{ID: "bitcoin", Price: 49000}

	s = ApplyPriceUpdate(s, newer)
	s = ApplyPriceUpdate(s, older)

	btc, _ := s.Find("bitcoin")
	assert.Equal(t, 49000.0, btc.Price)
}

func TestSetAssetsClearsLoading(t *testing.T) {
	s := RefreshData(SetError(InitialState(), "boom"))
	require.True(t, s.Loading)
	require.Empty(t, s.Error)

	s = SetAssets(s, []Asset{{ID: "solana", Rank: 5}})
	assert.False(t, s.Loading)
	assert.Len(t, s.Assets, 1)
}

func TestFieldReducers(t *testing.T) {
	s := InitialState()
	assert.Equal(t, StatusDisconnected, s.ConnectionStatus)

	s = SetConnectionStatus(s, StatusReconnecting)
	s = SetError(s, "Attempting to reconnect (1/3)...")
	s = SetLoading(s, true)

	assert.Equal(t, StatusReconnecting, s.ConnectionStatus)
	assert.Equal(t, "Attempting to reconnect (1/3)...", s.Error)
	assert.True(t, s.Loading)
}

func TestPriceUpdateDecode_PartialSurvivesWire(t *testing.T) {
	var u PriceUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id":"bnb","price":401.5,"priceChanges":{"24h":1.5}}`), &u))

	assert.Equal(t, "bnb", u.ID)
	assert.Nil(t, u.PriceChanges.H1)
	assert.Nil(t, u.PriceChanges.D7)
	require.NotNil(t, u.PriceChanges.H24)
	assert.Equal(t, 1.5, *u.PriceChanges.H24)
}

func TestStateCloneIsDeep(t *testing.T) {
	supply := 21e6
	s := InitialState()
	s.Assets = []Asset{{ID: "bitcoin", MaxSupply: &supply, ChartData: []float64{1, 2, 3}}}

	c := s.Clone()
	c.Assets[0].ChartData[0] = 99
	*c.Assets[0].MaxSupply = 1

	assert.Equal(t, 1.0, s.Assets[0].ChartData[0])
	assert.Equal(t, 21e6, *s.Assets[0].MaxSupply)
}
