package models

import "time"

// Tick is one accepted price quote. Field order is the wire order.
type Tick struct {
	Symbol     string   `json:"symbol"`
	Bid        float64  `json:"bid"`
	Ask        float64  `json:"ask"`
	Digits     *int     `json:"digits"`
	Time       *float64 `json:"time"`
	ReceivedAt int64    `json:"received_at"` // ms since epoch, server assigned
}

// TickInput is a validated submission that has not been stamped yet.
type TickInput struct {
	Symbol string
	Bid    float64
	Ask    float64
	Digits *int
	Time   *float64
}

// Stamp builds the Tick for this input received at now. The Tick shares no
// memory with in.
func (in TickInput) Stamp(now time.Time) Tick {
	return Tick{
		Symbol:     in.Symbol,
		Bid:        in.Bid,
		Ask:        in.Ask,
		Digits:     clonePtr(in.Digits),
		Time:       clonePtr(in.Time),
		ReceivedAt: now.UnixMilli(),
	}
}

// Clone returns a deep copy of t.
func (t Tick) Clone() Tick {
	t.Digits = clonePtr(t.Digits)
	t.Time = clonePtr(t.Time)
	return t
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Spread returns ask minus bid.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }

// Equal reports whether both ticks carry the same values.
func (t Tick) Equal(o Tick) bool {
	if t.Symbol != o.Symbol || t.Bid != o.Bid || t.Ask != o.Ask || t.ReceivedAt != o.ReceivedAt {
		return false
	}
	if (t.Digits == nil) != (o.Digits == nil) || (t.Digits != nil && *t.Digits != *o.Digits) {
		return false
	}
	if (t.Time == nil) != (o.Time == nil) || (t.Time != nil && *t.Time != *o.Time) {
		return false
	}
	return true
}
