package rps

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/gordian-engine/rps/rcyclon"
	"github.com/gordian-engine/rps/rquic"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quic-go/quic-go"
)

// Node is a peer sampling node on a QUIC transport.
// All overlay operations are available through the embedded Overlay.
type Node struct {
	*rcyclon.Overlay

	tr *rquic.Transport
}

// NodeConfig is the configuration for a [Node].
type NodeConfig struct {
	UDPConn *net.UDPConn

	// If nil, [rquic.DefaultQUICConfig] is used.
	QUIC *quic.Config

	// The TLS configuration for both listening and dialing.
	// The Node clones it and adds [rquic.ALPN] if missing.
	TLS *tls.Config

	// The address other nodes use to reach this one.
	// It is this node's ID in every view.
	AdvertiseAddr string

	// Fraction of the view offered in each exchange.
	UsedCoef float64

	// Time between exchanges started by this node.
	// Zero disables periodic exchanges;
	// use [rcyclon.Overlay.Exchange] to drive them instead.
	ExchangeInterval time.Duration

	// Zero selects [rcyclon.DefaultExchangeTimeout].
	ExchangeTimeout time.Duration

	// If set, overlay metrics are registered here.
	Registerer prometheus.Registerer
}

// validate panics if there are any illegal settings in the configuration.
// Settings owned by the transport or the overlay are validated there.
func (c NodeConfig) validate() {
	var panicErrs error

	if c.TLS == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("NodeConfig.TLS must not be nil"),
		)
	}

	if c.ExchangeInterval < 0 {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf("NodeConfig.ExchangeInterval must not be negative (got %s)", c.ExchangeInterval),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// NewNode returns a new Node.
// The ctx parameter controls the lifecycle of the Node;
// cancel it to stop, and then use [*Node.Wait]
// to block until all background work has completed.
//
// NewNode returns runtime errors that happen during initialization.
// Configuration errors cause a panic.
func NewNode(ctx context.Context, log *slog.Logger, cfg NodeConfig) (*Node, error) {
	cfg.validate()

	tlsConf := cfg.TLS.Clone()
	if !slices.Contains(tlsConf.NextProtos, rquic.ALPN) {
		tlsConf.NextProtos = append(tlsConf.NextProtos, rquic.ALPN)
	}

	tr, err := rquic.New(ctx, log.With("node_sys", "transport"), rquic.Config{
		UDPConn:       cfg.UDPConn,
		QUIC:          cfg.QUIC,
		TLS:           tlsConf,
		AdvertiseAddr: cfg.AdvertiseAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start transport: %w", err)
	}

	var tk ticker.Ticker
	if cfg.ExchangeInterval > 0 {
		tk = ticker.New(cfg.ExchangeInterval)
	}

	o := rcyclon.New(ctx, log.With("node_sys", "overlay"), rcyclon.Config{
		Transport:       tr,
		UsedCoef:        cfg.UsedCoef,
		ExchangeTicker:  tk,
		ExchangeTimeout: cfg.ExchangeTimeout,
		Metrics:         rcyclon.NewMetrics(cfg.Registerer),
	})

	return &Node{
		Overlay: o,
		tr:      tr,
	}, nil
}

// Wait blocks until the node's overlay and transport
// have finished all background work.
func (n *Node) Wait() {
	n.Overlay.Wait()
	n.tr.Wait()
}
