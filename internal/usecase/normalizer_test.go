package usecase

import (
	"errors"
	"testing"

	"MT5Stream/internal/domain/models"
)

func TestNormalizeTickRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload models.Payload
		want    Rejection
	}{
		{"absent body", models.AbsentPayload(), ErrEmptyBody},
		{"blank text", models.RawTextPayload("   "), ErrEmptyBody},
		{"unparsable text", models.RawTextPayload("symbol=EURUSD"), ErrEmptyBody},
		{"json null text", models.RawTextPayload("null"), ErrEmptyBody},
		{"json array text", models.RawTextPayload(`[1,2]`), ErrMissingSymbol},
		{"json zero text", models.RawTextPayload("0"), ErrEmptyBody},
		{"json false text", models.RawTextPayload("false"), ErrEmptyBody},
		{"json empty string text", models.RawTextPayload(`""`), ErrEmptyBody},
		{"json array structured", models.StructuredListPayload([]any{map[string]any{"symbol": "EURUSD"}}), ErrMissingSymbol},
		{"no symbol", models.StructuredPayload(map[string]any{"bid": 1.0, "ask": 1.1}), ErrMissingSymbol},
		{"empty symbol", models.StructuredPayload(map[string]any{"symbol": "", "bid": 1.0, "ask": 1.1}), ErrMissingSymbol},
		{"null symbol", models.StructuredPayload(map[string]any{"symbol": nil, "bid": 1.0, "ask": 1.1}), ErrMissingSymbol},
		{"zero symbol", models.StructuredPayload(map[string]any{"symbol": 0.0, "bid": 1.0, "ask": 1.1}), ErrMissingSymbol},
		{"no bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "ask": 1.1}), ErrMissingBid},
		{"null bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": nil, "ask": 1.1}), ErrMissingBid},
		{"no ask", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": 1.0}), ErrMissingAsk},
		{"bid and ask missing reports bid first", models.StructuredPayload(map[string]any{"symbol": "EURUSD"}), ErrMissingBid},
		{"text bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": "x", "ask": 1.08}), ErrBidNotNumber},
		{"infinite bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": "Infinity", "ask": 1.08}), ErrBidNotNumber},
		{"object ask", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": 1.0, "ask": map[string]any{}}), ErrAskNotNumber},
		{"nan ask text", models.RawTextPayload(`{"symbol":"EURUSD","bid":1,"ask":"NaN"}`), ErrAskNotNumber},
		{"hex float bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": "0x1p-2", "ask": 1.08}), ErrBidNotNumber},
		{"signed hex bid", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": "-0x10", "ask": 1.08}), ErrBidNotNumber},
		{"separated digits ask", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": 1.0, "ask": "1_000"}), ErrAskNotNumber},
		{"overflowing ask", models.StructuredPayload(map[string]any{"symbol": "EURUSD", "bid": 1.0, "ask": "1e400"}), ErrAskNotNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeTick(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalizeTickStructured(t *testing.T) {
	in, err := NormalizeTick(models.StructuredPayload(map[string]any{
		"symbol":      "EURUSD",
		"bid":         1.0810,
		"ask":         1.0812,
		"received_at": 1.0,
	}))
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if in.Symbol != "EURUSD" || in.Bid != 1.0810 || in.Ask != 1.0812 {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Digits != nil || in.Time != nil {
		t.Fatalf("absent digits/time must stay absent, got %+v", in)
	}
}

func TestNormalizeTickRawTextWithOptionalFields(t *testing.T) {
	in, err := NormalizeTick(models.RawTextPayload(` {"symbol":"XAUUSD","bid":"2350.15","ask":2350.45,"digits":"2","time":1718000000} `))
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if in.Bid != 2350.15 {
		t.Fatalf("string bid must be coerced, got %v", in.Bid)
	}
	if in.Digits == nil || *in.Digits != 2 {
		t.Fatalf("expected digits 2, got %v", in.Digits)
	}
	if in.Time == nil || *in.Time != 1718000000 {
		t.Fatalf("expected time 1718000000, got %v", in.Time)
	}
}

func TestNormalizeTickCoercions(t *testing.T) {
	in, err := NormalizeTick(models.StructuredPayload(map[string]any{
		"symbol": 12345.0,
		"bid":    0.0,
		"ask":    "",
		"digits": 4.9,
		"time":   "soon",
	}))
	if err != nil {
		t.Fatalf("zero and empty-string prices are present values: %v", err)
	}
	if in.Symbol != "12345" {
		t.Fatalf("numeric symbol must be rendered as text, got %q", in.Symbol)
	}
	if in.Bid != 0 || in.Ask != 0 {
		t.Fatalf("expected zero prices, got %+v", in)
	}
	if in.Digits == nil || *in.Digits != 4 {
		t.Fatalf("digits must be truncated to an integer, got %v", in.Digits)
	}
	if in.Time != nil {
		t.Fatalf("non-numeric time is treated as unknown, got %v", *in.Time)
	}
}

func TestNormalizeTickNumericStrings(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{" 1.0810 ", 1.081},
		{"+2", 2},
		{".5", 0.5},
		{"5.", 5},
		{"1e3", 1000},
		{"0x10", 16},
		{"0o17", 15},
		{"0b101", 5},
		{"\t", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			in, err := NormalizeTick(models.StructuredPayload(map[string]any{
				"symbol": "EURUSD", "bid": tt.in, "ask": 1.0,
			}))
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
			if in.Bid != tt.want {
				t.Fatalf("bid = %v, want %v", in.Bid, tt.want)
			}
		})
	}
}

func TestNormalizeTickIsPure(t *testing.T) {
	obj := map[string]any{"symbol": "EURUSD", "bid": 1.0, "ask": 1.1}
	a, errA := NormalizeTick(models.StructuredPayload(obj))
	b, errB := NormalizeTick(models.StructuredPayload(obj))
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors %v %v", errA, errB)
	}
	if a != b {
		t.Fatalf("same input produced different results: %+v vs %+v", a, b)
	}
	if len(obj) != 3 {
		t.Fatalf("normalizer must not mutate its input")
	}
}
