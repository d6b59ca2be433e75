package variable

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

type Operation string

const (
	OpEquals              Operation = "equals"
	OpNotEquals           Operation = "notEquals"
	OpEqualsIgnoreCase    Operation = "equalsIgnoreCase"
	OpNotEqualsIgnoreCase Operation = "notEqualsIgnoreCase"
	OpLike                Operation = "like"
	OpGreaterThan         Operation = "greaterThan"
	OpGreaterThanOrEquals Operation = "greaterThanOrEquals"
	OpLessThan            Operation = "lessThan"
	OpLessThanOrEquals    Operation = "lessThanOrEquals"
)

func ParseOperation(s string) (Operation, bool) {
	switch op := Operation(strings.TrimSpace(s)); op {
	case OpEquals, OpNotEquals, OpEqualsIgnoreCase, OpNotEqualsIgnoreCase, OpLike,
		OpGreaterThan, OpGreaterThanOrEquals, OpLessThan, OpLessThanOrEquals:
		return op, true
	}
	return "", false
}

func (op Operation) IgnoreCase() bool {
	return op == OpEqualsIgnoreCase || op == OpNotEqualsIgnoreCase
}

func (op Operation) Range() bool {
	switch op {
	case OpGreaterThan, OpGreaterThanOrEquals, OpLessThan, OpLessThanOrEquals:
		return true
	}
	return false
}

// SQL returns the comparison operator; ignore-case operations compare lowered text.
func (op Operation) SQL() string {
	switch op {
	case OpNotEquals, OpNotEqualsIgnoreCase:
		return "<>"
	case OpLike:
		return "LIKE"
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEquals:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEquals:
		return "<="
	}
	return "="
}

type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	}
	return "unknown"
}

// QueryVariable is one variable condition of a query request.
type QueryVariable struct {
	Name      string `json:"name" mapstructure:"name"`
	Value     any    `json:"value" mapstructure:"value"`
	Operation string `json:"operation" mapstructure:"operation"`
	Type      string `json:"type" mapstructure:"type"`
}

// Filter is a validated variable condition ready for the DAO layer. Numbers carry
// both representations so integral and double columns can be matched.
type Filter struct {
	Name   string
	Op     Operation
	Kind   Kind
	Str    string
	Long   int64
	Double float64
}

// ValueOnly reports a condition on any variable holding the value.
func (f Filter) ValueOnly() bool { return f.Name == "" }

// IntegralOperand is the number compared against integer-typed variables: Long when the
// query value is integral, the fractional Double otherwise.
func (f Filter) IntegralOperand() any {
	if float64(f.Long) == f.Double {
		return f.Long
	}
	return f.Double
}

func (q QueryVariable) Compile() (Filter, error) {
	if strings.TrimSpace(q.Operation) == "" {
		return Filter{}, apperr.IllegalArgument("Variable operation is missing for variable: %s", q.Name)
	}
	op, ok := ParseOperation(q.Operation)
	if !ok {
		return Filter{}, apperr.IllegalArgument("Unsupported variable query operation: %s", q.Operation)
	}
	if q.Value == nil {
		return Filter{}, apperr.IllegalArgument("Variable value cannot be null for variable: %s", q.Name)
	}
	if q.Name == "" && op != OpEquals {
		return Filter{}, apperr.IllegalArgument("Value-only query (without a variable-name) is only supported when using 'equals' operation.")
	}

	f := Filter{Name: q.Name, Op: op}
	var err error
	if q.Type != "" {
		err = f.coerce(q.Type, q.Value)
	} else {
		err = f.infer(q.Value)
	}
	if err != nil {
		return Filter{}, err
	}

	switch {
	case (op.IgnoreCase() || op == OpLike) && f.Kind != KindString:
		return Filter{}, apperr.IllegalArgument("Only string variable values are supported for '%s', but was: %s", op, f.Kind)
	case op.Range() && f.Kind == KindBoolean:
		return Filter{}, apperr.IllegalArgument("Booleans are not supported for '%s'", op)
	}
	if op.IgnoreCase() {
		f.Str = strings.ToLower(f.Str)
	}
	return f, nil
}

func (f *Filter) setNumber(v any) bool {
	d, ok := ToFloat64(v)
	if !ok {
		return false
	}
	f.Kind, f.Double = KindNumber, d
	if n, ok := ToInt64(v); ok {
		f.Long = n
	} else {
		f.Long = int64(d)
	}
	return true
}

func (f *Filter) infer(v any) error {
	switch x := v.(type) {
	case string:
		f.Kind, f.Str = KindString, x
		return nil
	case bool:
		f.Kind, f.Long = KindBoolean, boolToLong(x)
		return nil
	case time.Time:
		f.Kind, f.Long = KindDate, x.UnixMilli()
		return nil
	case json.Number, int, int8, int16, int32, int64, float32, float64:
		if f.setNumber(x) {
			return nil
		}
	}
	return apperr.IllegalArgument("Unsupported variable value type %T for variable: %s", v, f.Name)
}

func (f *Filter) coerce(typ string, v any) error {
	t, err := ParseType(typ)
	if err != nil {
		return err
	}
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return apperr.IllegalArgument("Variable value for '%s' is not a string", f.Name)
		}
		f.Kind, f.Str = KindString, s
	case TypeShort, TypeInteger, TypeLong:
		n, ok := ToInt64(v)
		if !ok {
			return apperr.IllegalArgument("Variable value for '%s' is not a valid %s", f.Name, t)
		}
		f.Kind, f.Long, f.Double = KindNumber, n, float64(n)
	case TypeDouble:
		if !f.setNumber(v) {
			return apperr.IllegalArgument("Variable value for '%s' is not a valid double", f.Name)
		}
	case TypeBoolean:
		b, ok := toBool(v)
		if !ok {
			return apperr.IllegalArgument("Variable value for '%s' is not a valid boolean", f.Name)
		}
		f.Kind, f.Long = KindBoolean, boolToLong(b)
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return apperr.IllegalArgument("Variable value for '%s' is not a date string", f.Name)
		}
		ts, err := ParseDate(s)
		if err != nil {
			return apperr.IllegalArgument("The given variable value is not a date: '%s'", s)
		}
		f.Kind, f.Long = KindDate, ts.UnixMilli()
	default:
		return apperr.IllegalArgument("Variables of type '%s' cannot be used in a query", t)
	}
	return nil
}

// CompileAll compiles every condition, stopping at the first invalid one.
func CompileAll(qs []QueryVariable) ([]Filter, error) {
	if len(qs) == 0 {
		return nil, nil
	}
	out := make([]Filter, 0, len(qs))
	for _, q := range qs {
		f, err := q.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
