// Package engine runs the periodic distance-vector protocol cycle:
// advertise, listen, learn, age, reconcile, sleep.
package engine

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colinmarsh/dvrd/internal/config"
	"github.com/colinmarsh/dvrd/internal/cycletimer"
	"github.com/colinmarsh/dvrd/internal/hostprobe"
	"github.com/colinmarsh/dvrd/internal/inbox"
	"github.com/colinmarsh/dvrd/internal/neighbors"
	"github.com/colinmarsh/dvrd/internal/netutil"
	"github.com/colinmarsh/dvrd/internal/rib"
	"github.com/colinmarsh/dvrd/internal/routesink"
	"github.com/colinmarsh/dvrd/internal/stats"
	"github.com/colinmarsh/dvrd/internal/wire"
)

// Engine runs the protocol cycle until Stop is called. One Engine
// corresponds to one enable/disable lifetime of dynamic routing: the
// RIB, Neighbor View, and cycle goroutine are created together and torn
// down together.
type Engine struct {
	cfg      config.Config
	routerID string
	sink     routesink.Sink
	logger   *zap.Logger

	rib       *rib.RIB
	neighbors *neighbors.View
	cycle     stats.Cycle

	running atomic.Bool
	timer   *cycletimer.Timer

	locals   []hostprobe.Interface
	listener net.PacketConn
}

// New creates an Engine with the given configuration and route sink.
// It does not yet enumerate interfaces or bind a socket; call Start for
// that.
func New(cfg config.Config, sink routesink.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	routerID, err := os.Hostname()
	if err != nil || routerID == "" {
		routerID = "dvrd"
	}
	return &Engine{
		cfg:       cfg,
		routerID:  routerID,
		sink:      sink,
		logger:    logger,
		neighbors: neighbors.New(),
		timer:     cycletimer.New(),
	}
}

// Neighbors returns the engine's neighbor view, safe to read from the
// console concurrently with a running engine.
func (e *Engine) Neighbors() *neighbors.View {
	return e.neighbors
}

// Start enumerates interfaces, binds the shared listen socket, seeds the
// RIB, and runs cycles until ctx is cancelled or Stop is called.
// Enumeration and bind failures are setup-fatal and are returned
// immediately without running any cycle.
func (e *Engine) Start(ctx context.Context) error {
	exclusion := hostprobe.Exclusion{Prefixes: e.cfg.ExcludedPrefixes}
	locals, err := hostprobe.Enumerate(exclusion)
	if err != nil {
		return fmt.Errorf("engine: setup-fatal: %w", err)
	}
	if len(locals) == 0 {
		return fmt.Errorf("engine: setup-fatal: no eligible local interfaces found")
	}
	e.locals = locals

	listener, err := netutil.ListenUDP(ctx, fmt.Sprintf("0.0.0.0:%d", e.cfg.Port))
	if err != nil {
		return fmt.Errorf("engine: setup-fatal: bind listen socket: %w", err)
	}
	e.listener = listener
	defer listener.Close()

	e.rib = rib.New(rib.Exclusion{Prefixes: e.cfg.ExcludedPrefixes})

	now := time.Now()
	var prefixes []netip.Prefix
	for _, l := range e.locals {
		prefixes = append(prefixes, l.Prefix)
	}
	e.rib.Seed(now, prefixes)

	e.running.Store(true)
	for e.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		e.runCycle(ctx)
		if !e.running.Load() {
			break
		}
		e.timer.Wait(e.cfg.CyclePeriod)
	}
	return nil
}

// Stop requests that the engine halt at the next observation point.
// Cancellation is not observed inside the listen window, so worst-case
// stop latency is listen_window + cycle_period.
func (e *Engine) Stop() {
	e.running.Store(false)
	e.timer.Stop()
}

// runCycle executes one send → receive → publish → age → reconcile
// step.
func (e *Engine) runCycle(ctx context.Context) {
	cycleStart := time.Now()

	sendStart := time.Now()
	e.sendPhase(ctx)
	sendDuration := time.Since(sendStart)

	recvStart := time.Now()
	neighborSnapshot := e.receivePhase(ctx)
	recvDuration := time.Since(recvStart)

	e.neighbors.Replace(neighborSnapshot)

	expired := e.rib.Age(time.Now(), e.cfg.ExpireThreshold)
	e.reconcile(ctx, expired)

	snap := e.cycle.ResetAll()
	e.logger.Info("cycle complete",
		zap.Duration("send_duration", sendDuration),
		zap.Duration("receive_duration", recvDuration),
		zap.Duration("cycle_duration", time.Since(cycleStart)),
		zap.Uint64("sent", snap.Sent),
		zap.Uint64("received", snap.Received),
		zap.Uint64("decode_failures", snap.DecodeFailures),
		zap.Uint64("self_suppressed", snap.SelfSuppressed),
		zap.Uint64("routes_replaced", snap.RoutesReplaced),
		zap.Uint64("routes_deleted", snap.RoutesDeleted),
	)
}

// sendPhase emits one advertisement per enumerated interface,
// concurrently, each from its own ephemeral socket: the source address
// of each datagram must match the interface it is advertising for, so
// one shared socket cannot serve every interface.
func (e *Engine) sendPhase(ctx context.Context) {
	g, _ := errgroup.WithContext(ctx)
	for _, iface := range e.locals {
		iface := iface
		g.Go(func() error {
			e.advertiseOn(ctx, iface)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) advertiseOn(ctx context.Context, iface hostprobe.Interface) {
	view := e.rib.AdvertiseView(iface.IP)
	msg := wire.Message{RouterID: e.routerID}
	for _, v := range view {
		msg.Networks = append(msg.Networks, wire.NetworkHops{CIDR: v.CIDR, Hops: v.Hops})
	}
	payload, err := wire.Encode(msg)
	if err != nil {
		e.logger.Warn("send-transient: encode advertisement", zap.String("iface", iface.IP.String()), zap.Error(err))
		return
	}

	conn, err := netutil.ListenUDP(ctx, fmt.Sprintf("%s:0", iface.IP.String()))
	if err != nil {
		e.logger.Warn("send-transient: bind sender socket", zap.String("iface", iface.IP.String()), zap.Error(err))
		return
	}
	defer conn.Close()

	dest := &net.UDPAddr{IP: iface.Broadcast.AsSlice(), Port: e.cfg.Port}
	if _, err := conn.WriteTo(payload, dest); err != nil {
		e.logger.Warn("send-transient: send advertisement", zap.String("iface", iface.IP.String()), zap.Error(err))
		return
	}
	e.cycle.Sent.Increment()
}

// receivePhase consumes datagrams on the shared listener for the
// configured listen window, decoding and merging each into the RIB, and
// returns the per-cycle neighbor snapshot. The listen window bounds the
// whole phase; SocketReadTimeout bounds any single blocked read within
// it, so one slow or silent neighbor can't stall the phase short of the
// window.
func (e *Engine) receivePhase(ctx context.Context) map[netip.Addr]string {
	phaseDeadline := time.Now().Add(e.cfg.ListenWindow)
	conn, hasDeadline := e.listener.(interface{ SetReadDeadline(time.Time) error })

	q := inbox.New()
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		if ctx.Err() != nil {
			break
		}
		now := time.Now()
		if !now.Before(phaseDeadline) {
			break
		}
		if hasDeadline {
			readDeadline := now.Add(e.cfg.SocketReadTimeout)
			if readDeadline.After(phaseDeadline) {
				readDeadline = phaseDeadline
			}
			_ = conn.SetReadDeadline(readDeadline)
		}
		n, addr, err := e.listener.ReadFrom(buf)
		if err != nil {
			// A read timeout just means no datagram arrived within this
			// slice of the window; keep listening until the phase
			// deadline itself passes. Any other error is
			// receive-transient and is logged but does not abort the
			// cycle.
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			e.logger.Debug("receive-transient: read datagram", zap.Error(err))
			break
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		q.Push(inbox.Datagram{Payload: payload, SrcAddr: addr.String()})
	}

	neighborSnapshot := make(map[netip.Addr]string)
	now := time.Now()
	for _, d := range q.Drain() {
		e.cycle.Received.Increment()
		msg, err := wire.Decode(d.Payload)
		if err != nil {
			e.cycle.DecodeFailures.Increment()
			e.logger.Debug("decode-invalid: datagram", zap.Error(err))
			continue
		}
		if msg.RouterID == e.routerID {
			e.cycle.SelfSuppressed.Increment()
			continue
		}
		srcAddr, err := sourceIP(d.SrcAddr)
		if err != nil {
			e.cycle.DecodeFailures.Increment()
			continue
		}
		neighborSnapshot[srcAddr] = msg.RouterID
		for _, nh := range msg.Networks {
			if !canonicalMatches(nh.CIDR) {
				continue
			}
			e.rib.Consider(now, nh.CIDR, srcAddr, nh.Hops)
		}
	}
	return neighborSnapshot
}

// reconcile pushes the RIB's changes since the last cycle to the OS
// route sink: replace for every new/changed entry, delete for every
// CIDR that expired this cycle.
func (e *Engine) reconcile(ctx context.Context, expired []string) {
	changed, removedByDiff := e.rib.DiffForInstall()
	for _, c := range changed {
		if c.Via.IsLocal() {
			continue
		}
		if err := e.sink.Replace(ctx, c.CIDR, c.Via.Addr()); err != nil {
			e.logger.Debug("route-apply: replace", zap.String("cidr", c.CIDR), zap.Error(err))
			continue
		}
		e.cycle.RoutesReplaced.Increment()
	}

	removed := append([]string{}, removedByDiff...)
	removed = append(removed, expired...)
	seen := make(map[string]bool)
	for _, cidr := range removed {
		if seen[cidr] {
			continue
		}
		seen[cidr] = true
		if err := e.sink.Delete(ctx, cidr); err != nil {
			e.logger.Debug("route-apply: delete", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		e.cycle.RoutesDeleted.Increment()
	}
}

// canonicalMatches reports whether cidr parses as a valid network
// prefix and is already in canonical (masked) form: any advertised CIDR
// that isn't already its own network address is rejected outright
// rather than silently renormalized.
func canonicalMatches(cidr string) bool {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false
	}
	return p.Masked() == p
}

func sourceIP(addr string) (netip.Addr, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return a, nil
}
