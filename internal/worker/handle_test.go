package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/streamcore/internal/stream"
)

func TestHandle_NotifyBackpressure_LatestWins(t *testing.T) {
	h := New(map[stream.TaskID]stream.ComponentID{}, nil, nil)

	h.NotifyBackpressure(true)
	h.NotifyBackpressure(false)

	select {
	case v := <-h.BackpressureTrigger:
		assert.False(t, v)
	default:
		t.Fatal("expected a pending backpressure notification")
	}
}

func TestHandle_DefaultFlags(t *testing.T) {
	h := New(nil, nil, nil)
	assert.True(t, h.StormActive.Load())
	assert.False(t, h.ThrottleOn.Load())
	assert.False(t, h.StormComponentDebug.Load())
}
