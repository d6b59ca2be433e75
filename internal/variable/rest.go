package variable

import (
	"strings"
	"time"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// ParseScope maps an empty scope onto def.
func ParseScope(s string, def Scope) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case string(ScopeLocal):
		return ScopeLocal, nil
	case string(ScopeGlobal):
		return ScopeGlobal, nil
	}
	return "", apperr.IllegalArgument("Invalid variable scope: '%s'", s)
}

// RestVariable is the wire shape of a variable.
type RestVariable struct {
	Name     string `json:"name" mapstructure:"name"`
	Type     string `json:"type,omitempty" mapstructure:"type"`
	Value    any    `json:"value" mapstructure:"value"`
	ValueURL string `json:"valueUrl,omitempty" mapstructure:"valueUrl"`
	Scope    string `json:"scope,omitempty" mapstructure:"scope"`
}

// Encode validates the name and converts the value, honoring an explicit type.
func (rv RestVariable) Encode() (Value, error) {
	if strings.TrimSpace(rv.Name) == "" {
		return Value{}, apperr.IllegalArgument("Variable name is required")
	}
	if rv.Type == "" {
		return Encode(rv.Value)
	}
	t, err := ParseType(rv.Type)
	if err != nil {
		return Value{}, err
	}
	return EncodeAs(t, rv.Value)
}

// ToRest renders a stored value. Binary values carry a valueUrl instead of the bytes.
func ToRest(name string, v Value, scope Scope, valueURL string) RestVariable {
	rv := RestVariable{Name: name, Type: string(v.Type), Scope: string(scope)}
	switch {
	case v.IsBinary():
		rv.ValueURL = valueURL
	case v.Type == TypeDate:
		if v.Long != nil {
			rv.Value = FormatDate(time.UnixMilli(*v.Long))
		}
	default:
		rv.Value = v.Decode()
	}
	return rv
}
