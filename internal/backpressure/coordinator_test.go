package backpressure

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []bool
}

func (n *recordingNotifier) NotifyBackpressure(active bool) {
	n.mu.Lock()
	n.events = append(n.events, active)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]bool, len(n.events))
	copy(out, n.events)
	return out
}

// TestCoordinator_EdgeTriggered covers spec §4.6 and the idempotence
// property: setting backpressure true twice yields one notification.
func TestCoordinator_EdgeTriggered(t *testing.T) {
	n := &recordingNotifier{}
	c := New(true, n, "test-executor")

	c.HighWaterMark()
	c.HighWaterMark()
	c.HighWaterMark()
	assert.True(t, c.Active())
	assert.Equal(t, []bool{true}, n.all())

	c.LowWaterMark()
	c.LowWaterMark()
	assert.False(t, c.Active())
	assert.Equal(t, []bool{true, false}, n.all())
}

func TestCoordinator_DisabledIsNoOp(t *testing.T) {
	n := &recordingNotifier{}
	c := New(false, n, "test-executor")

	c.HighWaterMark()
	assert.False(t, c.Active())
	assert.Empty(t, n.all())
}
