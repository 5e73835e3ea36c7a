package types

import (
	"slices"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null equals null", Null(), Null(), 0},
		{"null before bool", Null(), Bool(false), -1},
		{"bool before number", Bool(true), Number(-100), -1},
		{"number before string", Number(1e9), String(""), -1},
		{"string after null", String("a"), Null(), 1},
		{"false before true", Bool(false), Bool(true), -1},
		{"true equals true", Bool(true), Bool(true), 0},
		{"numbers by value", Number(2), Number(10), -1},
		{"int and float agree", Int(3), Number(3), 0},
		{"strings lexically", String("10"), String("9"), -1},
		{"number one and string one differ", Number(1), String("1"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestCompareSortsAcrossKinds(t *testing.T) {
	got := []Value{String("b"), Number(2), Null(), Bool(true), String("a"), Number(-1), Bool(false)}
	slices.SortFunc(got, Compare)
	want := []Value{Null(), Bool(false), Bool(true), Number(-1), Number(2), String("a"), String("b")}
	assert.Equal(t, want, got)
}

func TestOf(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{"x", String("x")},
		{true, Bool(true)},
		{1.5, Number(1.5)},
		{float32(0.5), Number(0.5)},
		{7, Int(7)},
		{int64(-2), Number(-2)},
		{int32(3), Number(3)},
		{uint32(4), Number(4)},
		{String("v"), String("v")},
	}
	for _, tt := range tests {
		got, err := Of(tt.in)
		require.NoError(t, err, "%T", tt.in)
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}

	for _, in := range []any{[]string{"a"}, map[string]any{}, struct{}{}} {
		_, err := Of(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "%T", in)
	}
}

func TestAccessors(t *testing.T) {
	s, ok := String("x").Str()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = Number(1).Str()
	assert.False(t, ok)

	n, ok := Int(4).Num()
	assert.True(t, ok)
	assert.Equal(t, 4.0, n)

	b, ok := Bool(true).Boolean()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, Value{}.IsNull())
	assert.Equal(t, KindNull, Value{}.Kind())
	assert.Nil(t, Null().Any())
	assert.Equal(t, "string", KindString.String())
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		in     Value
		want   float64
		wantOK bool
	}{
		{Number(2.5), 2.5, true},
		{String("42"), 42, true},
		{String("  3.25\n"), 3.25, true},
		{String("-1e3"), -1000, true},
		{String("forty"), 0, false},
		{String(""), 0, false},
		{Bool(true), 0, false},
		{Null(), 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.in.AsFloat()
		assert.Equal(t, tt.wantOK, ok, "%s", tt.in)
		assert.Equal(t, tt.want, got, "%s", tt.in)
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "Bindoon", String("Bindoon").String())
	assert.Equal(t, "34", Int(34).String())
	assert.Equal(t, "4.5", Number(4.5).String())
	assert.Equal(t, "false", Bool(false).String())
}

func TestUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{`null`, Null()},
		{`"Sharlene"`, String("Sharlene")},
		{`56`, Int(56)},
		{`-0.5`, Number(-0.5)},
		{`true`, Bool(true)},
		{` false `, Bool(false)},
	}
	for _, tt := range tests {
		var v Value
		require.NoError(t, v.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, v, tt.in)
	}
}

func TestUnmarshalJSONRejectsContainers(t *testing.T) {
	for _, in := range []string{`{"a":1}`, `[1,2]`, ` [] `, ``} {
		var v Value
		assert.ErrorIs(t, v.UnmarshalJSON([]byte(in)), ErrUnsupportedValue, in)
	}

	var attrs Attributes
	assert.Error(t, json.Unmarshal([]byte(`{"name":"a","tags":["x"]}`), &attrs))
	assert.Error(t, json.Unmarshal([]byte(`{"address":{"town":"Bindoon"}}`), &attrs))
}

func TestAttributesJSON(t *testing.T) {
	attrs := Attributes{
		"name":     String("Burgers Galore"),
		"rating":   String("4.5"),
		"open":     Bool(true),
		"capacity": Int(40),
		"closed":   Null(),
	}
	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"capacity":40,"closed":null,"name":"Burgers Galore","open":true,"rating":"4.5"}`, string(data))

	var back Attributes
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, attrs.Equal(back))
}

func TestAttributes(t *testing.T) {
	a := Attributes{"age": Int(56)}
	assert.Equal(t, Int(56), a.Get("age"))
	assert.Equal(t, Null(), a.Get("missing"))

	_, ok := a.Lookup("missing")
	assert.False(t, ok)

	c := a.Clone()
	c["age"] = Int(57)
	assert.Equal(t, Int(56), a.Get("age"))
	assert.False(t, a.Equal(c))

	assert.NotNil(t, Attributes(nil).Clone())
	assert.Equal(t, Attributes{"rating": String("4.5")}, FromStrings(map[string]string{"rating": "4.5"}))
}

func TestEdgeString(t *testing.T) {
	e := Edge{Source: "Sharlene", Target: "Bindoon", Relationship: "Lives In"}
	assert.Equal(t, "Sharlene -[Lives In]-> Bindoon", e.String())
}
