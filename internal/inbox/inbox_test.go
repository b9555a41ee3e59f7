package inbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsEmpty(t *testing.T) {
	q := New()
	require.Equal(t, 0, q.Len())
}

func TestPushAndDrainPreservesOrder(t *testing.T) {
	q := New()
	want := []Datagram{
		{Payload: []byte{0x00}, SrcAddr: "10.0.0.1"},
		{Payload: []byte{0x11}, SrcAddr: "10.0.0.2"},
		{Payload: []byte{0x22}, SrcAddr: "10.0.0.3"},
	}
	for _, d := range want {
		q.Push(d)
	}
	require.Equal(t, len(want), q.Len())
	got := q.Drain()
	require.Equal(t, want, got)
	require.Equal(t, 0, q.Len())
}

func TestDrainEmptyQueue(t *testing.T) {
	q := New()
	require.Empty(t, q.Drain())
}
