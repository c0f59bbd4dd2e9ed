package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts used to render and parse temporal literals.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05.999999999Z"
)

// Value is a sealed interface representing literal types.
// Only Null, String, Int, Float, Bool, Date, DateTime and List implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is an explicit absent value.
type Null struct{}

func (Null) irValue() {}

// String is a text value.
type String string

func (String) irValue() {}

// Int is an integer value.
type Int int64

func (Int) irValue() {}

// Float is a floating point value.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Date is a calendar date at midnight UTC.
type Date struct {
	time.Time
}

func (Date) irValue() {}

// DateTime is an instant in UTC.
type DateTime struct {
	time.Time
}

func (DateTime) irValue() {}

// List is an ordered sequence of scalar values. It backs `in` lists and
// the two bounds of `between`.
type List []Value

func (List) irValue() {}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewDateTime normalises t to UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{t.UTC()}
}

// ParseDate parses a YYYY-MM-DD literal.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// ParseDateTime parses a YYYY-MM-DDTHH:MM:SS[.fff]Z literal.
func ParseDateTime(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	return NewDateTime(t), nil
}

// NewList creates a List from values.
func NewList(vals ...Value) List {
	return List(vals)
}

// IsScalar reports whether v is anything but a List.
func IsScalar(v Value) bool {
	_, isList := v.(List)
	return v != nil && !isList
}

// Format renders v the way it is written in query text.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		s := strconv.FormatFloat(float64(val), 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") && !math.IsInf(float64(val), 0) && !math.IsNaN(float64(val)) {
			s += ".0"
		}
		return s
	case Bool:
		return strconv.FormatBool(bool(val))
	case Date:
		return val.Format(DateLayout)
	case DateTime:
		return val.Format(DateTimeLayout)
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Quote renders s as a double-quoted literal using the query escapes.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// MarshalValue marshals a Value to JSON bytes. Dates and datetimes become
// strings in their literal layouts.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Date:
		return json.Marshal(val.Format(DateLayout))
	case DateTime:
		return json.Marshal(val.Format(DateTimeLayout))
	case List:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
