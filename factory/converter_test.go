package factory_test

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-forge/factory"
)

// ── Intrinsic routes ──────────────────────────────────────────────────────────

func TestConverters_IntrinsicRanks(t *testing.T) {
	conv := factory.NewConverters()

	cases := []struct {
		name string
		src  any
		dst  any
		rank factory.Rank
		ok   bool
	}{
		{"identical", 0, 0, factory.RankIdentical, true},
		{"int16 to int64", int16(0), int64(0), factory.RankWidening, true},
		{"int16 to int", int16(0), 0, factory.RankWidening, true},
		{"int to int64", 0, int64(0), factory.RankWidening, true},
		{"float32 to float64", float32(0), float64(0), factory.RankWidening, true},
		{"int to float64", 0, float64(0), factory.RankWidening, true},
		{"int16 to float32", int16(0), float32(0), factory.RankWidening, true},
		{"int32 to float32 narrows", int32(0), float32(0), 0, false},
		{"int64 to int32 narrows", int64(0), int32(0), 0, false},
		{"uint to int crosses sign", uint(0), 0, 0, false},
		{"float64 to float32 narrows", float64(0), float32(0), 0, false},
		{"string to int", "", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rank, ok := conv.Rank(reflect.TypeOf(tc.src), reflect.TypeOf(tc.dst))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.rank, rank)
			}
		})
	}
}

func TestConverters_AssignableRank(t *testing.T) {
	conv := factory.NewConverters()

	errT := reflect.TypeOf((*error)(nil)).Elem()
	concrete := reflect.TypeOf(errors.New(""))

	rank, ok := conv.Rank(concrete, errT)
	require.True(t, ok)
	assert.Equal(t, factory.RankAssignable, rank)
}

// ── Registration ──────────────────────────────────────────────────────────────

func TestConverters_With_Registers(t *testing.T) {
	base := factory.NewConverters()
	conv, err := base.With(strconv.Atoi)
	require.NoError(t, err)

	rank, ok := conv.Rank(reflect.TypeOf(""), reflect.TypeOf(0))
	require.True(t, ok)
	assert.Equal(t, factory.RankRegistered, rank)

	// The original registry is untouched.
	_, ok = base.Rank(reflect.TypeOf(""), reflect.TypeOf(0))
	assert.False(t, ok)
}

func TestConverters_With_RejectsBadShapes(t *testing.T) {
	cases := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a func", "nope"},
		{"two params", func(a, b string) int { return 0 }},
		{"zero params", func() int { return 0 }},
		{"variadic", func(xs ...string) int { return 0 }},
		{"second result not error", func(s string) (int, bool) { return 0, false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.NewConverters().With(tc.fn)
			var mismatched *factory.MismatchedSignatureError
			require.ErrorAs(t, err, &mismatched)
		})
	}
}

// ── Convert ───────────────────────────────────────────────────────────────────

func TestConverters_Convert_Widens(t *testing.T) {
	conv := factory.NewConverters()

	out, err := conv.Convert(reflect.ValueOf(int16(7)), reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Interface())
}

func TestConverters_Convert_InvalidYieldsZero(t *testing.T) {
	conv := factory.NewConverters()

	out, err := conv.Convert(reflect.Value{}, reflect.TypeOf(0))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Interface())
}

func TestConverters_Convert_Registered(t *testing.T) {
	conv, err := factory.NewConverters().With(strconv.Atoi)
	require.NoError(t, err)

	out, err := conv.Convert(reflect.ValueOf("41"), reflect.TypeOf(0))
	require.NoError(t, err)
	assert.Equal(t, 41, out.Interface())

	_, err = conv.Convert(reflect.ValueOf("not a number"), reflect.TypeOf(0))
	assert.Error(t, err)
}

func TestConverters_Convert_NewestRegistrationWins(t *testing.T) {
	conv, err := factory.NewConverters().With(func(s string) int { return 1 })
	require.NoError(t, err)
	conv, err = conv.With(func(s string) int { return 2 })
	require.NoError(t, err)

	out, err := conv.Convert(reflect.ValueOf("x"), reflect.TypeOf(0))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Interface())
}

func TestConverters_Convert_UnwrapsInterface(t *testing.T) {
	conv := factory.NewConverters()

	// An any-typed slot holding an int still reaches an int64 target.
	var boxed any = 9
	v := reflect.ValueOf(&boxed).Elem()
	require.Equal(t, reflect.Interface, v.Kind())

	out, err := conv.Convert(v, reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(9), out.Interface())
}

func TestConverters_Convert_NoRoute(t *testing.T) {
	conv := factory.NewConverters()

	_, err := conv.Convert(reflect.ValueOf("x"), reflect.TypeOf(0))
	var noConv *factory.NoConverterError
	require.ErrorAs(t, err, &noConv)
	assert.Equal(t, reflect.TypeOf(""), noConv.From)
	assert.Equal(t, reflect.TypeOf(0), noConv.To)
}
