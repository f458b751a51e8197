package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalize_ComponentWinsOnOverridableKeys covers spec scenario 4 and
// invariant 5: every key outside the overridable set passes through from
// topology untouched, regardless of what the component declares.
func TestNormalize_ComponentWinsOnOverridableKeys(t *testing.T) {
	topology := NewTopologyConfig()
	topology.Set(KeyDebug, false)
	topology.Set("acker.count", 3)

	component, err := ParseComponentConfig([]byte(`{"topology.debug": true, "acker.count": 99}`))
	require.NoError(t, err)

	effective := Normalize(topology, component)

	assert.Equal(t, true, effective[KeyDebug])
	assert.Equal(t, 3, effective["acker.count"])
}

func TestNormalize_NonOverridableKeyNeverShadowed(t *testing.T) {
	topology := NewTopologyConfig()
	topology.Set(KeyBackpressureEnable, true)

	component, err := ParseComponentConfig([]byte(`{"topology.backpressure.enable": false}`))
	require.NoError(t, err)

	effective := Normalize(topology, component)

	assert.Equal(t, true, effective[KeyBackpressureEnable])
}

// TestNormalize_Idempotent re-normalizing an already-normalized config (as an
// empty component overlay) must be a no-op.
func TestNormalize_Idempotent(t *testing.T) {
	topology := NewTopologyConfig()
	topology.Set(KeyTickTupleFreqSecs, 30)

	empty, err := ParseComponentConfig(nil)
	require.NoError(t, err)

	first := Normalize(topology, empty)
	for k, v := range first {
		topology.Set(k, v)
	}
	second := Normalize(topology, empty)

	assert.Equal(t, first, second)
}

func TestDecode(t *testing.T) {
	effective := map[string]any{
		KeyTickTupleFreqSecs: 5,
		KeyDebug:             true,
	}

	var out struct {
		TickFreq int  `mapstructure:"topology.tick.tuple.freq.secs"`
		Debug    bool `mapstructure:"topology.debug"`
	}
	require.NoError(t, Decode(effective, &out))

	assert.Equal(t, 5, out.TickFreq)
	assert.True(t, out.Debug)
}
