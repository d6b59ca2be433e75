package variable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

func TestEncodeInfersJSONNumberTypes(t *testing.T) {
	cases := map[string]Type{
		"12":          TypeInteger,
		"2147483648":  TypeLong,
		"-2147483649": TypeLong,
		"1.5":         TypeDouble,
		"3.0":         TypeDouble,
	}
	for in, want := range cases {
		v, err := Encode(json.Number(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Type, in)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, in := range []any{"abc", true, int64(7), 2.5, ts, []byte{1, 2}, nil} {
		v, err := Encode(in)
		require.NoError(t, err)
		assert.Equal(t, in, v.Decode())
	}
	v, err := Encode(map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, TypeJSON, v.Type)
	assert.Equal(t, map[string]any{"a": "b"}, v.Decode())
}

func TestEncodeAsRejectsMismatches(t *testing.T) {
	_, err := EncodeAs(TypeString, json.Number("1"))
	assert.True(t, apperr.IsIllegalArgument(err))

	_, err = EncodeAs(TypeShort, json.Number("40000"))
	assert.True(t, apperr.IsIllegalArgument(err))

	_, err = EncodeAs(TypeBinary, "abc")
	assert.True(t, apperr.IsIllegalArgument(err))

	v, err := EncodeAs(TypeDate, "2024-03-01T10:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), v.Decode())

	v, err = EncodeAs(TypeLong, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Decode())
}

func TestRestVariableRequiresNameAndKnownType(t *testing.T) {
	_, err := RestVariable{Value: "x"}.Encode()
	assert.True(t, apperr.IsIllegalArgument(err))

	_, err = RestVariable{Name: "a", Type: "pojo", Value: "x"}.Encode()
	assert.True(t, apperr.IsIllegalArgument(err))
}

func TestToRestRendersBinaryAsURL(t *testing.T) {
	v, _ := Encode([]byte("payload"))
	rv := ToRest("doc", v, ScopeLocal, "http://host/data")
	assert.Nil(t, rv.Value)
	assert.Equal(t, "http://host/data", rv.ValueURL)

	d, _ := Encode(time.Date(2024, 3, 1, 10, 0, 0, 5_000_000, time.UTC))
	assert.Equal(t, "2024-03-01T10:00:00.005Z", ToRest("d", d, ScopeGlobal, "").Value)
}

func TestCompileOperationRules(t *testing.T) {
	bad := []QueryVariable{
		{Name: "a", Value: "x"},
		{Name: "a", Value: "x", Operation: "between"},
		{Name: "a", Operation: "equals"},
		{Value: "x", Operation: "notEquals"},
		{Name: "a", Value: json.Number("1"), Operation: "like"},
		{Name: "a", Value: true, Operation: "equalsIgnoreCase"},
		{Name: "a", Value: true, Operation: "greaterThan"},
		{Name: "a", Value: "x", Operation: "equals", Type: "binary"},
	}
	for _, q := range bad {
		_, err := q.Compile()
		assert.True(t, apperr.IsIllegalArgument(err), "%+v", q)
	}

	_, err := QueryVariable{Value: "x", Operation: "notEquals"}.Compile()
	assert.EqualError(t, err, "Value-only query (without a variable-name) is only supported when using 'equals' operation.")

	f, err := QueryVariable{Value: "x", Operation: "equals"}.Compile()
	require.NoError(t, err)
	assert.True(t, f.ValueOnly())

	f, err = QueryVariable{Name: "n", Value: "12", Operation: "lessThan", Type: "integer"}.Compile()
	require.NoError(t, err)
	assert.Equal(t, KindNumber, f.Kind)
	assert.Equal(t, int64(12), f.Long)

	f, err = QueryVariable{Name: "s", Value: "ABC", Operation: "equalsIgnoreCase"}.Compile()
	require.NoError(t, err)
	assert.Equal(t, "abc", f.Str)

	f, err = QueryVariable{Name: "b", Value: false, Operation: "notEquals"}.Compile()
	require.NoError(t, err)
	assert.Equal(t, KindBoolean, f.Kind)
	assert.Equal(t, int64(0), f.Long)
}
