package dbvalue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	t.Run("zero value is null", func(t *testing.T) {
		var v Value
		assert.Equal(t, KindNull, v.Kind())
		assert.True(t, v.IsNull())
	})

	t.Run("constructors carry their kind", func(t *testing.T) {
		assert.Equal(t, KindBool, Bool(true).Kind())
		assert.Equal(t, KindInt64, Int64(42).Kind())
		assert.Equal(t, KindFloat64, Float64(1.5).Kind())
		assert.Equal(t, KindString, String("x").Kind())
		assert.Equal(t, KindBinary, Binary([]byte{1}).Kind())
		assert.Equal(t, KindDateTime, DateTime(time.Now()).Kind())
	})

	t.Run("typed accessor mismatch fails", func(t *testing.T) {
		_, err := String("x").AsInt64()
		assert.Error(t, err)

		_, err = Int64(1).AsBool()
		assert.Error(t, err)
	})
}

func TestJSONValue(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		v, err := JSON(`{"a":1}`)
		require.NoError(t, err)
		assert.Equal(t, KindJSON, v.Kind())

		s, err := v.AsString()
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, s)
	})

	t.Run("invalid document fails", func(t *testing.T) {
		_, err := JSON(`{"a":`)
		assert.Error(t, err)
	})
}

func TestLosslessNumericConversion(t *testing.T) {
	t.Run("integral float converts to int64", func(t *testing.T) {
		n, err := Float64(42).AsInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("fractional float does not truncate", func(t *testing.T) {
		_, err := Float64(42.5).AsInt64()
		assert.Error(t, err)
	})

	t.Run("huge float does not wrap", func(t *testing.T) {
		_, err := Float64(1e300).AsInt64()
		assert.Error(t, err)
	})

	t.Run("small int64 converts to float64", func(t *testing.T) {
		f, err := Int64(1 << 20).AsFloat64()
		require.NoError(t, err)
		assert.Equal(t, float64(1<<20), f)
	})

	t.Run("int64 beyond float53 precision fails", func(t *testing.T) {
		_, err := Int64((1 << 53) + 1).AsFloat64()
		assert.Error(t, err)
	})
}

func TestFromNative(t *testing.T) {
	t.Run("round trips the listed kinds", func(t *testing.T) {
		now := time.Now()
		cases := []interface{}{nil, true, int64(7), 2.5, "s", []byte{9}, now}
		for _, c := range cases {
			v, err := FromNative(c)
			require.NoError(t, err)
			assert.Equal(t, c, v.Native())
		}
	})

	t.Run("narrow integers widen", func(t *testing.T) {
		v, err := FromNative(int32(5))
		require.NoError(t, err)
		n, err := v.AsInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("uint64 overflow fails explicitly", func(t *testing.T) {
		_, err := FromNative(uint64(1) << 63)
		assert.Error(t, err)
	})

	t.Run("unsupported type fails", func(t *testing.T) {
		_, err := FromNative(struct{}{})
		assert.Error(t, err)
	})
}

func TestNatives(t *testing.T) {
	out := Natives([]Value{Int64(1), String("a"), Null()})
	assert.Equal(t, []interface{}{int64(1), "a", nil}, out)
	assert.Nil(t, Natives(nil))
}
