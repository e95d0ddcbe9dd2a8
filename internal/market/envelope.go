package market

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame every server message travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeUpdate frames u as a priceUpdate event.
func EncodeUpdate(u PriceUpdate) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("market: encode update: %w", err)
	}
	return json.Marshal(Envelope{Event: EventPriceUpdate, Data: data})
}

// DecodeUpdate parses a frame. ok is false for frames that are not a
// well-formed priceUpdate event.
func DecodeUpdate(raw []byte) (u PriceUpdate, ok bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event != EventPriceUpdate {
		return PriceUpdate{}, false
	}
	if err := json.Unmarshal(env.Data, &u); err != nil || u.ID == "" {
		return PriceUpdate{}, false
	}
	return u, true
}
