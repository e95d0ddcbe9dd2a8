package market

// ConnectionStatus is the lifecycle state of the live-update connection as
// seen by the client.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusError        ConnectionStatus = "error"
	StatusFailed       ConnectionStatus = "failed"
)

func (s ConnectionStatus) String() string { return string(s) }

// Label is the human-readable indicator text for s.
func (s ConnectionStatus) Label() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusConnecting:
		return "Connecting..."
	case StatusReconnecting:
		return "Reconnecting..."
	case StatusDisconnected:
		return "Disconnected"
	case StatusError:
		return "Connection Error"
	case StatusFailed:
		return "Connection Failed"
	default:
		return "Unknown"
	}
}

// Asset is one tracked coin as rendered in the price table.
type Asset struct {
	ID                string    `json:"id" bson:"id"`
	Rank              int       `json:"rank" bson:"rank"`
	Logo              string    `json:"logo" bson:"logo"`
	Name              string    `json:"name" bson:"name"`
	Symbol            string    `json:"symbol" bson:"symbol"`
	Price             float64   `json:"price" bson:"price"`
	PriceChange1h     float64   `json:"priceChange1h" bson:"priceChange1h"`
	PriceChange24h    float64   `json:"priceChange24h" bson:"priceChange24h"`
	PriceChange7d     float64   `json:"priceChange7d" bson:"priceChange7d"`
	MarketCap         float64   `json:"marketCap" bson:"marketCap"`
	Volume24h         float64   `json:"volume24h" bson:"volume24h"`
	CirculatingSupply float64   `json:"circulatingSupply" bson:"circulatingSupply"`
	MaxSupply         *float64  `json:"maxSupply" bson:"maxSupply,omitempty"`
	ChartData         []float64 `json:"chartData" bson:"chartData"`
}

// Clone returns a deep copy of a.
func (a Asset) Clone() Asset {
	out := a
	if a.MaxSupply != nil {
		v := *a.MaxSupply
		out.MaxSupply = &v
	}
	if a.ChartData != nil {
		out.ChartData = make([]float64, len(a.ChartData))
		copy(out.ChartData, a.ChartData)
	}
	return out
}

// PriceChanges carries the optional percentage deltas of an update. A nil
// field means the update does not touch that column.
type PriceChanges struct {
	H1  *float64 `json:"1h,omitempty"`
	H24 *float64 `json:"24h,omitempty"`
	D7  *float64 `json:"7d,omitempty"`
}

// PriceUpdate is the wire payload of a priceUpdate event.
type PriceUpdate struct {
	ID           string       `json:"id"`
	Price        float64      `json:"price"`
	PriceChanges PriceChanges `json:"priceChanges"`
}

// EventPriceUpdate is the envelope event name carrying a PriceUpdate.
const EventPriceUpdate = "priceUpdate"

// Float returns a pointer to v, for building PriceChanges literals.
func Float(v float64) *float64 { return &v }
