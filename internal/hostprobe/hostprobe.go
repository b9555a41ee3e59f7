// Package hostprobe enumerates the host's locally configured IPv4
// interfaces: every usable address, together with its prefix length,
// network address, and directed broadcast address.
package hostprobe

import (
	"fmt"
	"net"
	"net/netip"
)

// Interface describes one locally configured IPv4 address eligible for
// the routing engine to use.
type Interface struct {
	IP        netip.Addr   // the local interface address
	Prefix    netip.Prefix // the address's network, host bits zeroed
	Broadcast netip.Addr   // the interface's directed broadcast address
}

// CIDR returns the canonical text form of the interface's network.
func (i Interface) CIDR() string {
	return i.Prefix.Masked().String()
}

// Exclusion filters interfaces out of Enumerate's result by the textual
// prefix of their network CIDR.
type Exclusion struct {
	Prefixes []string
}

func (e Exclusion) excluded(cidr string) bool {
	for _, p := range e.Prefixes {
		if len(cidr) >= len(p) && cidr[:len(p)] == p {
			return true
		}
	}
	return false
}

// DefaultExclusion covers loopback and the common NAT/virtualization
// prefix used in test environments.
func DefaultExclusion() Exclusion {
	return Exclusion{Prefixes: []string{"127.", "10.0.2."}}
}

// Enumerate lists every locally configured, non-excluded IPv4 interface.
// A failure here is setup-fatal: the engine cannot run without knowing
// its own local networks.
func Enumerate(exclusion Exclusion) ([]Interface, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("hostprobe: enumerate interfaces: %w", err)
	}

	var out []Interface
	for _, iface := range ifs {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			addr, ok := netip.AddrFromSlice(ip4)
			if !ok {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			prefix := netip.PrefixFrom(addr, ones).Masked()

			entry := Interface{
				IP:        addr,
				Prefix:    prefix,
				Broadcast: directedBroadcast(addr, ones),
			}
			if exclusion.excluded(entry.CIDR()) {
				continue
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// directedBroadcast computes the broadcast address for a /prefixLen
// network containing addr: the network address with all host bits set.
func directedBroadcast(addr netip.Addr, prefixLen int) netip.Addr {
	bits := addr.BitLen()
	b := addr.As4()
	hostBits := bits - prefixLen
	for i := 0; i < hostBits; i++ {
		byteIdx := 3 - i/8
		bitIdx := uint(i % 8)
		b[byteIdx] |= 1 << bitIdx
	}
	return netip.AddrFrom4(b)
}
