// Package rcyclontest contains helpers for tests
// that need a whole network of [rcyclon.Overlay] values.
package rcyclontest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/gordian-engine/rps/internal/rtest"
	"github.com/gordian-engine/rps/rcyclon"
	"github.com/gordian-engine/rps/rquic/rquictest"
	"github.com/gordian-engine/rps/rtransport"
	"github.com/gordian-engine/rps/rtransport/rmem"
)

// Network is a collection of overlays, one per node,
// to simplify tests that require multiple nodes.
type Network struct {
	Log *slog.Logger

	// Set for networks created with NewMemNetwork.
	Hub *rmem.Hub

	// Set for networks created with NewQUICNetwork.
	QUIC *rquictest.TransportSet

	Overlays []*rcyclon.Overlay
}

// ConfigFunc adjusts the configuration for the node at idx.
// The given config already has its Transport and RNG set.
type ConfigFunc func(idx int, cfg rcyclon.Config) rcyclon.Config

// NewMemNetwork returns a Network of nNodes overlays
// connected through an in-memory hub.
// Node IDs are "node00", "node01", and so on.
// No node is connected to any other yet.
//
// Cleanup waits for every overlay,
// so ctx must be cancelled before the test ends.
func NewMemNetwork(t *testing.T, ctx context.Context, nNodes int, fn ConfigFunc) *Network {
	t.Helper()

	hub := rmem.NewHub(0)
	trs := make([]rtransport.Transport, nNodes)
	for i := range nNodes {
		trs[i] = hub.Join(fmt.Sprintf("node%02d", i))
	}

	n := newNetwork(t, ctx, trs, fn)
	n.Hub = hub
	return n
}

// NewQUICNetwork is like [NewMemNetwork]
// but every node runs on its own loopback QUIC transport.
// Node IDs are the transports' addresses.
func NewQUICNetwork(t *testing.T, ctx context.Context, nNodes int, fn ConfigFunc) *Network {
	t.Helper()

	ts := rquictest.NewTransportSet(t, ctx, nNodes)
	trs := make([]rtransport.Transport, nNodes)
	for i, tr := range ts.Transports {
		trs[i] = tr
	}

	n := newNetwork(t, ctx, trs, fn)
	n.QUIC = ts
	return n
}

func newNetwork(t *testing.T, ctx context.Context, trs []rtransport.Transport, fn ConfigFunc) *Network {
	t.Helper()

	log := rtest.NewLogger(t)

	overlays := make([]*rcyclon.Overlay, len(trs))
	for i, tr := range trs {
		cfg := rcyclon.Config{
			Transport: tr,
			UsedCoef:  0.5,

			// Unique seed for each node.
			RNG: rand.New(rand.NewPCG(uint64(i), uint64(len(trs)))),
		}
		if fn != nil {
			cfg = fn(i, cfg)
		}

		o := rcyclon.New(ctx, log.With("node", i), cfg)

		// This cleanup call necessitates that the context is cancelled before the end of the test.
		t.Cleanup(o.Wait)

		overlays[i] = o
	}

	return &Network{
		Log:      log,
		Overlays: overlays,
	}
}

// IndexOf returns the index of the overlay with the given ID, or -1.
func (n *Network) IndexOf(id string) int {
	for i, o := range n.Overlays {
		if o.LocalID() == id {
			return i
		}
	}
	return -1
}

// TotalArcs is the sum of every overlay's view length.
func (n *Network) TotalArcs() int {
	total := 0
	for _, o := range n.Overlays {
		total += len(o.Peers())
	}
	return total
}

func (n *Network) Wait() {
	for _, o := range n.Overlays {
		o.Wait()
	}
}

// Subset returns a Network view of the overlays in [lo, hi).
// It shares the hub or transport set with n.
func (n *Network) Subset(lo, hi int) *Network {
	return &Network{
		Log:      n.Log,
		Hub:      n.Hub,
		QUIC:     n.QUIC,
		Overlays: n.Overlays[lo:hi],
	}
}
