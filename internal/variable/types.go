// Package variable holds the typed variable encoding shared by runtime and history rows,
// the REST variable shape and the variable query filters.
package variable

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

type Type string

const (
	TypeString       Type = "string"
	TypeShort        Type = "short"
	TypeInteger      Type = "integer"
	TypeLong         Type = "long"
	TypeDouble       Type = "double"
	TypeBoolean      Type = "boolean"
	TypeDate         Type = "date"
	TypeBinary       Type = "binary"
	TypeSerializable Type = "serializable"
	TypeJSON         Type = "json"
	TypeNull         Type = "null"
)

const (
	ContentTypeBinary       = "application/octet-stream"
	ContentTypeSerializable = "application/x-java-serialized-object"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.TrimSpace(s)); t {
	case TypeString, TypeShort, TypeInteger, TypeLong, TypeDouble, TypeBoolean,
		TypeDate, TypeBinary, TypeSerializable, TypeJSON, TypeNull:
		return t, nil
	}
	return "", apperr.IllegalArgument("Variable type '%s' is not supported", s)
}

func (t Type) Integral() bool { return t == TypeShort || t == TypeInteger || t == TypeLong }

func (t Type) Numeric() bool { return t.Integral() || t == TypeDouble }

// Value is the column set a typed variable is stored in. Runtime variables, historic
// variables and historic details embed it.
type Value struct {
	Type   Type     `gorm:"column:var_type;size:32" json:"-"`
	Text   string   `gorm:"column:text_value;size:4000" json:"-"`
	Text2  string   `gorm:"column:text_value2;size:4000" json:"-"`
	Long   *int64   `gorm:"column:long_value" json:"-"`
	Double *float64 `gorm:"column:double_value" json:"-"`
	Bytes  []byte   `gorm:"column:bytes" json:"-"`
}

func (v Value) IsBinary() bool { return v.Type == TypeBinary || v.Type == TypeSerializable }

// ContentType of the raw data stream of a binary value.
func (v Value) ContentType() string {
	if v.Type == TypeSerializable {
		return ContentTypeSerializable
	}
	return ContentTypeBinary
}

func longValue(t Type, n int64) Value   { return Value{Type: t, Long: &n} }
func doubleValue(f float64) Value       { return Value{Type: TypeDouble, Double: &f} }
func boolValue(b bool) Value            { return longValue(TypeBoolean, boolToLong(b)) }
func dateValue(t time.Time) Value       { return longValue(TypeDate, t.UnixMilli()) }
func bytesValue(t Type, b []byte) Value { return Value{Type: t, Bytes: b} }

func boolToLong(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Encode infers the type from the Go value.
func Encode(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{Type: TypeNull}, nil
	case Value:
		return x, nil
	case string:
		return Value{Type: TypeString, Text: x}, nil
	case bool:
		return boolValue(x), nil
	case int8:
		return longValue(TypeShort, int64(x)), nil
	case int16:
		return longValue(TypeShort, int64(x)), nil
	case int32:
		return longValue(TypeInteger, int64(x)), nil
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return longValue(TypeInteger, int64(x)), nil
		}
		return longValue(TypeLong, int64(x)), nil
	case int64:
		return longValue(TypeLong, x), nil
	case uint8:
		return longValue(TypeShort, int64(x)), nil
	case uint16:
		return longValue(TypeInteger, int64(x)), nil
	case uint32:
		return longValue(TypeLong, int64(x)), nil
	case float32:
		return doubleValue(float64(x)), nil
	case float64:
		return doubleValue(x), nil
	case json.Number:
		return fromNumber(x)
	case time.Time:
		return dateValue(x), nil
	case *time.Time:
		if x == nil {
			return Value{Type: TypeNull}, nil
		}
		return dateValue(*x), nil
	case []byte:
		return bytesValue(TypeBinary, x), nil
	case map[string]any, []any:
		raw, err := json.Marshal(x)
		if err != nil {
			return Value{}, apperr.IllegalArgument("Variable value cannot be serialized: %v", err)
		}
		return Value{Type: TypeJSON, Text: string(raw)}, nil
	}
	return Value{}, apperr.IllegalArgument("Variable value of type %T is not supported", v)
}

// fromNumber maps a JSON number: int32 range -> integer, other integral -> long, else double.
func fromNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return longValue(TypeInteger, i), nil
		}
		return longValue(TypeLong, i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, apperr.IllegalArgument("Variable value '%s' is not a valid number", n.String())
	}
	return doubleValue(f), nil
}

// EncodeAs coerces v into an explicitly requested type. A nil value is stored as null.
func EncodeAs(t Type, v any) (Value, error) {
	if v == nil || t == TypeNull {
		return Value{Type: TypeNull}, nil
	}
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return Value{}, apperr.IllegalArgument("Converter can only convert strings")
		}
		return Value{Type: TypeString, Text: s}, nil
	case TypeShort, TypeInteger, TypeLong:
		n, ok := ToInt64(v)
		if !ok {
			return Value{}, apperr.IllegalArgument("Converter can only convert %ss", t)
		}
		if t == TypeShort && (n < math.MinInt16 || n > math.MaxInt16) {
			return Value{}, apperr.IllegalArgument("Value %d is out of range for type short", n)
		}
		if t == TypeInteger && (n < math.MinInt32 || n > math.MaxInt32) {
			return Value{}, apperr.IllegalArgument("Value %d is out of range for type integer", n)
		}
		return longValue(t, n), nil
	case TypeDouble:
		f, ok := ToFloat64(v)
		if !ok {
			return Value{}, apperr.IllegalArgument("Converter can only convert doubles")
		}
		return doubleValue(f), nil
	case TypeBoolean:
		b, ok := toBool(v)
		if !ok {
			return Value{}, apperr.IllegalArgument("Converter can only convert booleans")
		}
		return boolValue(b), nil
	case TypeDate:
		switch x := v.(type) {
		case time.Time:
			return dateValue(x), nil
		case string:
			ts, err := ParseDate(x)
			if err != nil {
				return Value{}, apperr.IllegalArgument("The given variable value is not a date: '%s'", x)
			}
			return dateValue(ts), nil
		}
		return Value{}, apperr.IllegalArgument("Converter can only convert dates")
	case TypeJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return Value{}, apperr.IllegalArgument("Variable value cannot be serialized: %v", err)
		}
		return Value{Type: TypeJSON, Text: string(raw)}, nil
	case TypeBinary, TypeSerializable:
		b, ok := v.([]byte)
		if !ok {
			return Value{}, apperr.IllegalArgument("Variables of type '%s' must be set using multipart content", t)
		}
		return bytesValue(t, b), nil
	}
	return Value{}, apperr.IllegalArgument("Variable type '%s' is not supported", t)
}

// Decode returns the Go value: int64 for integral types, float64, bool, time.Time,
// []byte for binary values and decoded JSON for json values.
func (v Value) Decode() any {
	switch v.Type {
	case TypeString:
		return v.Text
	case TypeShort, TypeInteger, TypeLong:
		if v.Long == nil {
			return nil
		}
		return *v.Long
	case TypeDouble:
		if v.Double == nil {
			return nil
		}
		return *v.Double
	case TypeBoolean:
		if v.Long == nil {
			return nil
		}
		return *v.Long == 1
	case TypeDate:
		if v.Long == nil {
			return nil
		}
		return time.UnixMilli(*v.Long).UTC()
	case TypeBinary, TypeSerializable:
		return v.Bytes
	case TypeJSON:
		if v.Text == "" {
			return nil
		}
		return gjson.Parse(v.Text).Value()
	}
	return nil
}

// ToInt64 accepts Go integers, integral floats, json.Number and numeric strings.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case float32:
		if float32(int64(x)) == x {
			return int64(x), true
		}
	case float64:
		if float64(int64(x)) == x {
			return int64(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	if n, ok := ToInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return false, false
}
