package models

// PayloadKind tags the shape of an inbound submission body.
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota
	PayloadStructured
	PayloadRawText
)

// Payload is an inbound submission as it arrived at the boundary:
// a decoded JSON value, raw text that may still contain JSON, or nothing.
// For structured payloads Object holds the fields and Value the decoded
// body as received.
type Payload struct {
	Kind   PayloadKind
	Object map[string]any
	Value  any
	Text   string
}

func StructuredPayload(obj map[string]any) Payload {
	if obj == nil {
		obj = map[string]any{}
	}
	return Payload{Kind: PayloadStructured, Object: obj, Value: obj}
}

// StructuredListPayload wraps a decoded JSON array. It carries no fields.
func StructuredListPayload(list []any) Payload {
	if list == nil {
		list = []any{}
	}
	return Payload{Kind: PayloadStructured, Object: map[string]any{}, Value: list}
}

func RawTextPayload(text string) Payload {
	return Payload{Kind: PayloadRawText, Text: text}
}

func AbsentPayload() Payload {
	return Payload{Kind: PayloadAbsent}
}

// TypeName names the received body type the way rejection responses report it.
func (p Payload) TypeName() string {
	switch p.Kind {
	case PayloadStructured:
		return "object"
	case PayloadRawText:
		return "string"
	default:
		return "undefined"
	}
}
