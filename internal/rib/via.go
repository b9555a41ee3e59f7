package rib

import "net/netip"

// Via identifies the next hop for a route: either this host itself
// (a locally connected network) or a neighbor's IPv4 address. This is a
// tagged variant rather than a sentinel address, so "directly
// connected" can never be confused with a real neighbor address of
// 0.0.0.0.
type Via struct {
	local bool
	addr  netip.Addr
}

// LocalVia is the next hop for a directly connected network.
func LocalVia() Via {
	return Via{local: true}
}

// RemoteVia is the next hop via a neighbor's address.
func RemoteVia(addr netip.Addr) Via {
	return Via{addr: addr}
}

// IsLocal reports whether this Via designates a directly connected route.
func (v Via) IsLocal() bool {
	return v.local
}

// Addr returns the neighbor address. It is the zero netip.Addr for a
// local Via.
func (v Via) Addr() netip.Addr {
	return v.addr
}

// Equal reports whether two Vias designate the same next hop.
func (v Via) Equal(o Via) bool {
	if v.local != o.local {
		return false
	}
	if v.local {
		return true
	}
	return v.addr == o.addr
}

// Less implements the tie-break rule: a remote Via is ordered by
// numerically smaller IPv4 address (big-endian unsigned compare). Local
// is never compared this way since hops=0 always wins outright.
func (v Via) Less(o Via) bool {
	return v.addr.Less(o.addr)
}

func (v Via) String() string {
	if v.local {
		return "local"
	}
	return v.addr.String()
}
