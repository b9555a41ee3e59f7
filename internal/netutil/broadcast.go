// Package netutil provides the one piece of socket plumbing the
// standard library doesn't expose portably: enabling SO_BROADCAST on a
// UDP socket before it binds.
//
// Go's net package happily sends to a broadcast address on some
// platforms without this, but not reliably across the ones dvrd targets,
// so every socket dvrd opens (the shared listener and each per-interface
// sender) goes through this helper first.
package netutil

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// BroadcastListenConfig returns a net.ListenConfig whose Control hook
// sets SO_BROADCAST on the socket before bind, so the resulting
// connection may both receive on a broadcast address and send to one.
func BroadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}

// ListenUDP binds a UDP socket on addr with broadcast enabled.
func ListenUDP(ctx context.Context, addr string) (net.PacketConn, error) {
	lc := BroadcastListenConfig()
	return lc.ListenPacket(ctx, "udp4", addr)
}
