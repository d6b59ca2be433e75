// Package script evaluates UEL-style expressions, conditions and script task bodies on
// an embedded Lua runtime.
package script

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/jellydator/ttlcache/v3"

	"github.com/grand-thief-cash/procflow/internal/variable"
)

var ErrEvaluation = errors.New("script evaluation error")

const (
	chunkCacheSize = 2048
	chunkCacheTTL  = time.Hour
	globalTable    = "_G"
	globalIndex    = -2
)

var sandboxExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// prelude installs the helpers translated expressions rely on and makes reads of unknown
// names fail, as an expression language would.
const prelude = `
function __empty(v)
  if v == nil then return true end
  if type(v) == "string" then return v == "" end
  if type(v) == "table" then return next(v) == nil end
  return false
end
function __str(v)
  if v == nil then return "" end
  return tostring(v)
end
setmetatable(_G, {__index = function(_, k)
  if __nulls[k] then return nil end
  error("Unknown property used in expression: " .. tostring(k), 2)
end})
`

// Bindings is what an evaluation can see: the variables visible from the execution and
// a few execution attributes exposed as the "execution" table.
type Bindings struct {
	Variables map[string]any
	Execution map[string]any
}

// Updates are the variables a script or expression set, in call order.
type Updates struct {
	Names  []string
	Values map[string]any
}

func (u *Updates) set(name string, v any) {
	if u.Values == nil {
		u.Values = make(map[string]any)
	}
	if _, ok := u.Values[name]; !ok {
		u.Names = append(u.Names, name)
	}
	u.Values[name] = v
}

func (u *Updates) Empty() bool { return len(u.Names) == 0 }

type Runtime struct {
	chunks *ttlcache.Cache[string, string]
}

func NewRuntime() *Runtime {
	return &Runtime{
		chunks: ttlcache.New(
			ttlcache.WithCapacity[string, string](chunkCacheSize),
			ttlcache.WithTTL[string, string](chunkCacheTTL),
		),
	}
}

func (r *Runtime) translated(expr string) string {
	if item := r.chunks.Get(expr); item != nil {
		return item.Value()
	}
	src := Translate(expr)
	r.chunks.Set(expr, src, ttlcache.DefaultTTL)
	return src
}

// EvalCondition evaluates a sequence flow condition. Non-boolean results are errors.
func (r *Runtime) EvalCondition(b Bindings, expr string) (bool, error) {
	v, _, err := r.run(b, r.translated(expr))
	if err != nil {
		return false, err
	}
	res, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: condition expression returns non-Boolean: %v (%T)", ErrEvaluation, v, v)
	}
	return res, nil
}

// EvalExpression evaluates a value expression. Method-style calls like
// execution.setVariable('x', 1) are recorded as updates.
func (r *Runtime) EvalExpression(b Bindings, expr string) (any, Updates, error) {
	return r.run(b, r.translated(expr))
}

// RunScript executes a Lua script body. Its return value, if any, is the result.
func (r *Runtime) RunScript(b Bindings, src string) (any, Updates, error) {
	return r.run(b, src)
}

func (r *Runtime) run(b Bindings, chunk string) (result any, updates Updates, err error) {
	L := lua.NewState()
	setupSandbox(L)

	names := make([]string, 0, len(b.Variables))
	for k := range b.Variables {
		names = append(names, k)
	}
	sort.Strings(names)

	L.NewTable()
	for _, k := range names {
		if b.Variables[k] == nil {
			L.PushBoolean(true)
			L.SetField(-2, k)
		}
	}
	L.SetGlobal("__nulls")
	for _, k := range names {
		if v := b.Variables[k]; v != nil {
			goToLua(L, v)
			L.SetGlobal(k)
		}
	}

	lookup := func(name string) any {
		if v, ok := updates.Values[name]; ok {
			return v
		}
		return b.Variables[name]
	}
	getVariable := func(L *lua.State) int {
		name := lua.CheckString(L, 1)
		goToLua(L, lookup(name))
		return 1
	}
	setVariable := func(L *lua.State) int {
		name := lua.CheckString(L, 1)
		updates.set(name, luaToGo(L, 2))
		return 0
	}
	L.Register("getVariable", getVariable)
	L.Register("setVariable", setVariable)

	L.CreateTable(0, len(b.Execution)+2)
	for k, v := range b.Execution {
		goToLua(L, v)
		L.SetField(-2, k)
	}
	L.PushGoFunction(getVariable)
	L.SetField(-2, "getVariable")
	L.PushGoFunction(setVariable)
	L.SetField(-2, "setVariable")
	L.SetGlobal("execution")

	if err := lua.DoString(L, prelude); err != nil {
		return nil, updates, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	if err := lua.LoadString(L, chunk); err != nil {
		return nil, updates, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	if err := L.ProtectedCall(0, 1, 0); err != nil {
		return nil, updates, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	result = luaToGo(L, -1)
	L.Pop(1)
	return result, updates, nil
}

func setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(globalTable)
	for _, name := range sandboxExclude {
		L.PushNil()
		L.SetField(globalIndex, name)
	}
	L.Pop(1)
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		L.PushNil()
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int32:
		L.PushInteger(int(v))
	case int64:
		L.PushInteger(int(v))
	case float32:
		L.PushNumber(float64(v))
	case float64:
		L.PushNumber(v)
	case time.Time:
		L.PushString(variable.FormatDate(v))
	case []byte:
		L.PushString(string(v))
	case []any:
		L.CreateTable(len(v), 0)
		for i, item := range v {
			L.PushInteger(i + 1)
			goToLua(L, item)
			L.SetTable(-3)
		}
	case map[string]any:
		L.CreateTable(0, len(v))
		for k, item := range v {
			L.PushString(k)
			goToLua(L, item)
			L.SetTable(-3)
		}
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

// luaToGo converts integral numbers to int64 so they store as long variables.
func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := L.ToNumber(index)
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return tableToGo(L, L.AbsIndex(index))
	default:
		return nil
	}
}

func tableToGo(L *lua.State, index int) any {
	length := 0
	isArray := true
	L.PushNil()
	for L.Next(index) {
		if L.TypeOf(-2) != lua.TypeNumber {
			isArray = false
		}
		length++
		L.Pop(1)
	}
	if isArray && length > 0 {
		arr := make([]any, length)
		for i := 1; i <= length; i++ {
			L.RawGetInt(index, i)
			arr[i-1] = luaToGo(L, -1)
			L.Pop(1)
		}
		return arr
	}
	out := map[string]any{}
	L.PushNil()
	for L.Next(index) {
		key := fmt.Sprintf("%v", luaToGo(L, -2))
		out[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return out
}
