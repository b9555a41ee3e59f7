// Package console implements the interactive operator menu: enable or
// disable dynamic routing and list currently known neighbors, as a
// small read-eval-print loop driven by operator input.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/colinmarsh/dvrd/internal/config"
	"github.com/colinmarsh/dvrd/internal/engine"
	"github.com/colinmarsh/dvrd/internal/routesink"
)

// Console drives Engine lifetimes from operator commands: each enable
// creates a fresh Engine, each disable stops it.
type Console struct {
	cfg    config.Config
	sink   routesink.Sink
	logger *zap.Logger

	out io.Writer
	in  *bufio.Scanner

	eng    *engine.Engine
	cancel context.CancelFunc
}

// New creates a Console reading commands from in and writing output to
// out.
func New(cfg config.Config, sink routesink.Sink, logger *zap.Logger, in io.Reader, out io.Writer) *Console {
	return &Console{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		out:    out,
		in:     bufio.NewScanner(in),
	}
}

// Run reads commands until EOF, "exit", or ctx is cancelled. Recognized
// commands are "toggle" (enable/disable dynamic routing), "neighbors"
// (list the current neighbor set), and "exit".
func (c *Console) Run(ctx context.Context) {
	c.printHelp()
	for c.in.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch c.in.Text() {
		case "toggle":
			c.toggle(ctx)
		case "neighbors":
			c.listNeighbors()
		case "help", "":
			c.printHelp()
		case "exit", "quit":
			c.stopEngine()
			return
		default:
			fmt.Fprintf(c.out, "unrecognized command %q\n", c.in.Text())
		}
	}
	c.stopEngine()
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "commands: toggle, neighbors, exit")
}

func (c *Console) toggle(ctx context.Context) {
	if c.eng != nil {
		c.stopEngine()
		fmt.Fprintln(c.out, "dynamic routing disabled")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.eng = engine.New(c.cfg, c.sink, c.logger)
	eng := c.eng
	go func() {
		if err := eng.Start(runCtx); err != nil {
			c.logger.Error("engine stopped", zap.Error(err))
			fmt.Fprintf(c.out, "engine stopped: %v\n", err)
		}
	}()
	fmt.Fprintln(c.out, "dynamic routing enabled")
}

func (c *Console) stopEngine() {
	if c.eng == nil {
		return
	}
	c.eng.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	c.eng = nil
	c.cancel = nil
}

func (c *Console) listNeighbors() {
	if c.eng == nil {
		fmt.Fprintln(c.out, "dynamic routing is disabled")
		return
	}
	entries := c.eng.Neighbors().Snapshot()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Addr.Less(entries[j].Addr)
	})
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no neighbors known")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%s\t%s\n", e.Addr, e.RouterID)
	}
}
