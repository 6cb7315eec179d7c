package floatjson_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/floatjson"
)

func TestMap_RoundTrip(t *testing.T) {
	in := floatjson.Map{
		"test_acc":  0.75,
		"test_loss": math.NaN(),
		"grad_max":  math.Inf(1),
		"grad_min":  math.Inf(-1),
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"test_acc":0.75,"test_loss":"NaN","grad_max":"+Inf","grad_min":"-Inf"}`, string(raw))

	var out floatjson.Map
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 4)
	assert.InDelta(t, 0.75, out["test_acc"], 1e-12)
	assert.True(t, math.IsNaN(out["test_loss"]))
	assert.True(t, math.IsInf(out["grad_max"], 1))
	assert.True(t, math.IsInf(out["grad_min"], -1))
}

func TestMap_Null(t *testing.T) {
	raw, err := json.Marshal(floatjson.Map(nil))
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	out := floatjson.Map{"x": 1}
	require.NoError(t, json.Unmarshal([]byte("null"), &out))
	assert.Nil(t, out)
}

func TestMap_RejectsUnknownStrings(t *testing.T) {
	var out floatjson.Map
	assert.Error(t, json.Unmarshal([]byte(`{"loss":"big"}`), &out))
	assert.Error(t, json.Unmarshal([]byte(`{"loss":true}`), &out))
}

func TestFinite(t *testing.T) {
	assert.True(t, floatjson.Finite(1.5))
	assert.False(t, floatjson.Finite(math.NaN()))
	assert.False(t, floatjson.Finite(math.Inf(-1)))
}
