package tabular

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueFloat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want float64
		ok   bool
	}{
		{"number", Num(42.5), 42.5, true},
		{"numeric string", Str("100"), 100, true},
		{"numeric string with spaces", Str(" 3.14 "), 3.14, true},
		{"negative string", Str("-7"), -7, true},
		{"non-numeric string", Str("NY"), 0, false},
		{"empty string", Str(""), 0, false},
		{"bool", Bool(true), 0, false},
		{"null", Null(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := tt.v.Float()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "100", Num(100).String())
	assert.Equal(t, "2.5", Num(2.5).String())
	assert.Equal(t, "LA", Str("LA").String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "", Null().String())
}

func TestValueIsEmpty(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, Str("").IsEmpty())
	assert.False(t, Str("x").IsEmpty())
	assert.False(t, Num(0).IsEmpty())
	assert.False(t, Bool(false).IsEmpty())
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, Null(), FromAny(nil))
	assert.Equal(t, Num(5), FromAny(int64(5)))
	assert.Equal(t, Num(1.5), FromAny(1.5))
	assert.Equal(t, Str("bytes"), FromAny([]byte("bytes")))
	assert.Equal(t, Str("s"), FromAny("s"))
	assert.Equal(t, Bool(true), FromAny(true))
}

func TestValueJSONRoundTrip(t *testing.T) {
	row := Row{"city": Str("NY"), "amount": Num(100), "flag": Bool(false), "note": Null()}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded Row
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, row, decoded)
}

func TestValueUnmarshalRejectsComposite(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &v))
}

func TestNewResultNormalizesRows(t *testing.T) {
	res := NewResult([]string{"a", "b"}, []Row{
		{"a": Num(1)},
		{"a": Num(2), "b": Str("x"), "extra": Str("dropped")},
	})

	require.Len(t, res.Rows, 2)
	assert.Equal(t, Null(), res.Rows[0]["b"])
	assert.Equal(t, Str("x"), res.Rows[1]["b"])
	_, hasExtra := res.Rows[1]["extra"]
	assert.False(t, hasExtra)
}
