package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterStartsAtZero(t *testing.T) {
	var c Counter
	require.Equal(t, uint64(0), c.Value())
}

func TestCounterIncrement(t *testing.T) {
	var c Counter
	c.Increment()
	c.Increment()
	c.Add(3)
	require.Equal(t, uint64(5), c.Value())
}

func TestCycleResetAll(t *testing.T) {
	var c Cycle
	c.Sent.Add(2)
	c.Received.Add(4)
	c.DecodeFailures.Increment()

	snap := c.ResetAll()
	require.Equal(t, uint64(2), snap.Sent)
	require.Equal(t, uint64(4), snap.Received)
	require.Equal(t, uint64(1), snap.DecodeFailures)

	// Counters are zeroed after the snapshot.
	again := c.ResetAll()
	require.Equal(t, Snapshot{}, again)
}
