package rib

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

func TestSeedInstallsLocalAtHopZero(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	r.Seed(now, []netip.Prefix{mustPrefix(t, "192.168.1.0/24")})

	snap := r.Snapshot()
	e, ok := snap["192.168.1.0/24"]
	require.True(t, ok)
	require.Equal(t, 0, e.Hops)
	require.True(t, e.Via.IsLocal())
}

func TestSeedExcludesConfiguredPrefixes(t *testing.T) {
	r := New(Exclusion{Prefixes: []string{"127."}})
	r.Seed(time.Now(), []netip.Prefix{mustPrefix(t, "127.0.0.0/8")})
	require.Empty(t, r.Snapshot())
}

func TestConsiderInstallsNewRoute(t *testing.T) {
	r := New(Exclusion{})
	neighbor := mustAddr(t, "10.0.0.2")
	installed := r.Consider(time.Now(), "10.1.0.0/24", neighbor, 2)
	require.True(t, installed)

	e := r.Snapshot()["10.1.0.0/24"]
	require.Equal(t, 3, e.Hops)
	require.False(t, e.Via.IsLocal())
	require.Equal(t, neighbor, e.Via.Addr())
}

func TestConsiderPrefersLowerHopCount(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	a := mustAddr(t, "10.0.0.2")
	b := mustAddr(t, "10.0.0.3")

	r.Consider(now, "10.1.0.0/24", a, 2) // installs hops=3 via a
	installed := r.Consider(now, "10.1.0.0/24", b, 0) // candidate hops=1
	require.True(t, installed)

	e := r.Snapshot()["10.1.0.0/24"]
	require.Equal(t, 1, e.Hops)
	require.Equal(t, b, e.Via.Addr())
}

func TestConsiderRefreshesLastSeenOnReadvertiseFromSameVia(t *testing.T) {
	r := New(Exclusion{})
	t0 := time.Now()
	a := mustAddr(t, "10.0.0.2")

	installed := r.Consider(t0, "10.1.0.0/24", a, 0)
	require.True(t, installed)

	t1 := t0.Add(5 * time.Second)
	installed = r.Consider(t1, "10.1.0.0/24", a, 0)
	require.True(t, installed)

	e := r.Snapshot()["10.1.0.0/24"]
	require.Equal(t, 1, e.Hops)
	require.Equal(t, a, e.Via.Addr())
	require.True(t, e.LastSeen.Equal(t1))

	// A steadily re-advertised route must never age out.
	expired := r.Age(t1.Add(14*time.Second), 15*time.Second)
	require.Empty(t, expired)
}

func TestConsiderRejectsWorseHopCount(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	a := mustAddr(t, "10.0.0.2")
	b := mustAddr(t, "10.0.0.3")

	r.Consider(now, "10.1.0.0/24", a, 0) // hops=1
	installed := r.Consider(now, "10.1.0.0/24", b, 3) // candidate hops=4
	require.False(t, installed)

	e := r.Snapshot()["10.1.0.0/24"]
	require.Equal(t, 1, e.Hops)
	require.Equal(t, a, e.Via.Addr())
}

func TestConsiderTieBreaksOnNumericallySmallerAddress(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	high := mustAddr(t, "10.0.0.9")
	low := mustAddr(t, "10.0.0.2")

	r.Consider(now, "10.1.0.0/24", high, 1) // hops=2 via .9
	installed := r.Consider(now, "10.1.0.0/24", low, 1) // same hops=2, via .2 is smaller

	require.True(t, installed)
	e := r.Snapshot()["10.1.0.0/24"]
	require.Equal(t, low, e.Via.Addr())

	// A numerically larger tie-break candidate must not displace it.
	installed = r.Consider(now, "10.1.0.0/24", high, 1)
	require.False(t, installed)
}

func TestConsiderNeverOverwritesLocalNetwork(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	r.Seed(now, []netip.Prefix{mustPrefix(t, "192.168.1.0/24")})

	installed := r.Consider(now, "192.168.1.0/24", mustAddr(t, "10.0.0.2"), 0)
	require.False(t, installed)
	e := r.Snapshot()["192.168.1.0/24"]
	require.True(t, e.Via.IsLocal())
}

func TestAgeExpiresStaleNonLocalEntries(t *testing.T) {
	r := New(Exclusion{})
	base := time.Now()
	r.Seed(base, []netip.Prefix{mustPrefix(t, "192.168.1.0/24")})
	r.Consider(base, "10.1.0.0/24", mustAddr(t, "10.0.0.2"), 0)

	expired := r.Age(base.Add(20*time.Second), 15*time.Second)
	require.Equal(t, []string{"10.1.0.0/24"}, expired)

	snap := r.Snapshot()
	_, stillLocal := snap["192.168.1.0/24"]
	require.True(t, stillLocal)
	_, stillRemote := snap["10.1.0.0/24"]
	require.False(t, stillRemote)
}

func TestAdvertiseViewAppliesSplitHorizon(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	neighbor := mustAddr(t, "10.0.0.2")
	r.Seed(now, []netip.Prefix{mustPrefix(t, "192.168.1.0/24")})
	r.Consider(now, "10.1.0.0/24", neighbor, 0)

	view := r.AdvertiseView(neighbor)
	for _, a := range view {
		require.NotEqual(t, "10.1.0.0/24", a.CIDR)
	}

	other := mustAddr(t, "192.168.1.1")
	view = r.AdvertiseView(other)
	found := false
	for _, a := range view {
		if a.CIDR == "10.1.0.0/24" {
			found = true
			require.Equal(t, 1, a.Hops)
		}
	}
	require.True(t, found)
}

func TestDiffForInstallTracksChangesAcrossCalls(t *testing.T) {
	r := New(Exclusion{})
	now := time.Now()
	a := mustAddr(t, "10.0.0.2")
	r.Consider(now, "10.1.0.0/24", a, 0)

	changed, removed := r.DiffForInstall()
	require.Len(t, changed, 1)
	require.Empty(t, removed)

	changed, removed = r.DiffForInstall()
	require.Empty(t, changed)
	require.Empty(t, removed)

	r.Age(now.Add(time.Hour), 15*time.Second)
	changed, removed = r.DiffForInstall()
	require.Empty(t, changed)
	require.Equal(t, []string{"10.1.0.0/24"}, removed)
}

func TestCanonicalMasksHostBits(t *testing.T) {
	p := mustPrefix(t, "192.168.1.5/24")
	require.Equal(t, "192.168.1.0/24", Canonical(p))
}
