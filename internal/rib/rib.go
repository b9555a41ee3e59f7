// Package rib implements the routing information base for the dvrd
// distance-vector engine: one best path per destination network, keyed
// by its canonical CIDR text. The key space is a flat CIDR string
// rather than a longest-prefix-match trie, since distance-vector routes
// never need prefix containment queries, only exact-CIDR bookkeeping.
package rib

import (
	"net/netip"
	"sync"
	"time"
)

// Entry is one RIB row: hop count, next hop, and last-refresh time.
type Entry struct {
	Hops     int
	Via      Via
	LastSeen time.Time
}

// Exclusion filters CIDRs out of every RIB operation by textual prefix
// match, e.g. "127." or "10.0.2.".
type Exclusion struct {
	Prefixes []string
}

// Excluded reports whether cidr's text form begins with any configured
// excluded prefix.
func (e Exclusion) Excluded(cidr string) bool {
	for _, p := range e.Prefixes {
		if len(cidr) >= len(p) && cidr[:len(p)] == p {
			return true
		}
	}
	return false
}

// RIB is the routing information base. All operations are safe for
// concurrent use, though the engine has a single writer goroutine; the
// mutex exists so tests can read consistently.
type RIB struct {
	mu         sync.Mutex
	entries    map[string]Entry
	installed  map[string]Via // last set of (cidr,via) pushed to the OS route sink
	exclusion  Exclusion
	localCIDRs map[string]bool
}

// New creates an empty RIB with the given exclusion configuration.
func New(exclusion Exclusion) *RIB {
	return &RIB{
		entries:    make(map[string]Entry),
		installed:  make(map[string]Via),
		exclusion:  exclusion,
		localCIDRs: make(map[string]bool),
	}
}

// Seed inserts each local network at hop 0. Idempotent: re-seeding
// refreshes LastSeen but never changes Hops or Via for an existing
// local entry.
func (r *RIB) Seed(now time.Time, locals []netip.Prefix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range locals {
		cidr := canonical(p)
		if r.exclusion.Excluded(cidr) {
			continue
		}
		r.localCIDRs[cidr] = true
		r.entries[cidr] = Entry{Hops: 0, Via: LocalVia(), LastSeen: now}
	}
}

// Consider applies the best-path selection rule for a single advertised
// (cidr, neighborHops) pair heard from neighborAddr: lower hop count
// wins, ties break toward the numerically smaller neighbor address. It
// returns true if the candidate was installed.
func (r *RIB) Consider(now time.Time, cidr string, neighborAddr netip.Addr, neighborHops int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exclusion.Excluded(cidr) {
		return false
	}
	if r.localCIDRs[cidr] {
		// Never overwrite a directly-connected network with a learned one.
		return false
	}
	candidate := neighborHops + 1
	via := RemoteVia(neighborAddr)
	cur, ok := r.entries[cidr]
	install := false
	switch {
	case !ok:
		install = true
	case candidate < cur.Hops:
		install = true
	case candidate == cur.Hops && via.Equal(cur.Via):
		// Same neighbor re-advertising its existing best path: refresh
		// LastSeen so it doesn't age out between advertisements.
		install = true
	case candidate == cur.Hops:
		install = via.Less(cur.Via)
	}
	if !install {
		return false
	}
	r.entries[cidr] = Entry{Hops: candidate, Via: via, LastSeen: now}
	return true
}

// Age removes every non-local entry whose LastSeen is older than
// expire relative to now. Local entries are immortal.
func (r *RIB) Age(now time.Time, expire time.Duration) (expired []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for cidr, e := range r.entries {
		if r.localCIDRs[cidr] {
			continue
		}
		if now.Sub(e.LastSeen) >= expire {
			delete(r.entries, cidr)
			expired = append(expired, cidr)
		}
	}
	return expired
}

// Change describes one entry that needs a `route replace` applied.
type Change struct {
	CIDR string
	Via  Via
}

// DiffForInstall computes which entries need a fresh `route replace`
// (new or changed since the last call) and which CIDRs need a `route
// delete` (present in the last installed set but gone now). It updates
// the installed snapshot as a side effect, so a subsequent call only
// reports further changes.
func (r *RIB) DiffForInstall() (changed []Change, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[string]Via, len(r.entries))
	for cidr, e := range r.entries {
		if r.localCIDRs[cidr] {
			continue
		}
		current[cidr] = e.Via
	}

	for cidr, via := range current {
		if prev, ok := r.installed[cidr]; !ok || !prev.Equal(via) {
			changed = append(changed, Change{CIDR: cidr, Via: via})
		}
	}
	for cidr := range r.installed {
		if _, ok := current[cidr]; !ok {
			removed = append(removed, cidr)
		}
	}
	r.installed = current
	return changed, removed
}

// Advertised is one (cidr, hops) pair as it goes out on the wire.
type Advertised struct {
	CIDR string
	Hops int
}

// AdvertiseView returns the split-horizon advertisement for the
// interface whose local address is outgoing: every entry except those
// whose Via equals outgoing. Local entries are always included.
func (r *RIB) AdvertiseView(outgoing netip.Addr) []Advertised {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := make([]Advertised, 0, len(r.entries))
	for cidr, e := range r.entries {
		if !e.Via.IsLocal() && e.Via.Addr() == outgoing {
			continue
		}
		view = append(view, Advertised{CIDR: cidr, Hops: e.Hops})
	}
	return view
}

// Snapshot returns a copy of every entry currently in the RIB, for
// diagnostics and tests.
func (r *RIB) Snapshot() map[string]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// canonical re-derives the network address for a prefix by masking off
// its host bits, so every lookup and comparison uses the same key
// regardless of what host address the prefix was parsed from.
func canonical(p netip.Prefix) string {
	return p.Masked().String()
}

// Canonical exposes canonical() for callers outside the package (the
// engine, decoding advertisements off the wire).
func Canonical(p netip.Prefix) string {
	return canonical(p)
}
