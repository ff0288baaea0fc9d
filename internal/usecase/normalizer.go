package usecase

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"MT5Stream/internal/domain/models"
)

// Rejection is the reason a submission was not accepted. The text is
// returned to the caller verbatim.
type Rejection string

func (r Rejection) Error() string { return string(r) }

const (
	ErrEmptyBody     Rejection = "Body is empty or not valid JSON"
	ErrMissingSymbol Rejection = "Missing symbol"
	ErrMissingBid    Rejection = "Missing bid"
	ErrMissingAsk    Rejection = "Missing ask"
	ErrBidNotNumber  Rejection = "bid is not a number"
	ErrAskNotNumber  Rejection = "ask is not a number"
)

// NormalizeTick validates an inbound payload and converts it into a
// TickInput. Failures are always a Rejection.
func NormalizeTick(p models.Payload) (models.TickInput, error) {
	fields, ok := payloadFields(p)
	if !ok {
		return models.TickInput{}, ErrEmptyBody
	}

	symbol, ok := fields["symbol"]
	if !ok || !truthy(symbol) {
		return models.TickInput{}, ErrMissingSymbol
	}

	rawBid, ok := fields["bid"]
	if !ok || rawBid == nil {
		return models.TickInput{}, ErrMissingBid
	}
	rawAsk, ok := fields["ask"]
	if !ok || rawAsk == nil {
		return models.TickInput{}, ErrMissingAsk
	}

	bid, ok := toFinite(rawBid)
	if !ok {
		return models.TickInput{}, ErrBidNotNumber
	}
	ask, ok := toFinite(rawAsk)
	if !ok {
		return models.TickInput{}, ErrAskNotNumber
	}

	in := models.TickInput{
		Symbol: toText(symbol),
		Bid:    bid,
		Ask:    ask,
	}
	if in.Symbol == "" {
		return models.TickInput{}, ErrMissingSymbol
	}
	if v, ok := fields["digits"]; ok && v != nil {
		if f, ok := toFinite(v); ok {
			d := int(math.Trunc(f))
			in.Digits = &d
		}
	}
	if v, ok := fields["time"]; ok && v != nil {
		if f, ok := toFinite(v); ok {
			in.Time = &f
		}
	}
	return in, nil
}

// payloadFields coerces the payload into a field mapping. Raw text must
// parse to a truthy JSON value; one other than an object yields an empty
// mapping.
func payloadFields(p models.Payload) (map[string]any, bool) {
	switch p.Kind {
	case models.PayloadStructured:
		if p.Object == nil {
			return map[string]any{}, true
		}
		return p.Object, true
	case models.PayloadRawText:
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return nil, false
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil || !truthy(v) {
			return nil, false
		}
		if obj, ok := v.(map[string]any); ok {
			return obj, true
		}
		return map[string]any{}, true
	default:
		return nil, false
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case json.Number:
		f, err := x.Float64()
		return err != nil || (f != 0 && !math.IsNaN(f))
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}

// toFinite coerces v to a number and reports whether the result is finite.
// Strings are trimmed and an empty string counts as zero.
func toFinite(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if x {
			f = 1
		}
	case string:
		parsed, ok := parseNumeric(x)
		if !ok {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// parseNumeric reads a numeric string: optional surrounding whitespace, a
// signed decimal literal, or an unsigned 0x, 0o or 0b integer. Blank
// strings are zero. Hex floats, digit separators and other spellings are
// rejected.
func parseNumeric(str string) (float64, bool) {
	s := strings.TrimSpace(str)
	if s == "" {
		return 0, true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseRadix(s[2:], base)
		}
	}
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func parseRadix(digits string, base int) (float64, bool) {
	var f float64
	for _, r := range digits {
		d, err := strconv.ParseUint(string(r), base, 8)
		if err != nil {
			return 0, false
		}
		f = f*float64(base) + float64(d)
	}
	return f, true
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
