package rcyclon

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gordian-engine/rps/roverlay"
	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rpubsub"
	"github.com/gordian-engine/rps/rtransport"
	"github.com/gordian-engine/rps/rview"
	"github.com/lightningnetwork/lnd/clock"
)

// kernel owns the partial view and all other mutable overlay state.
// Only mainLoop and the handlers it calls touch those fields.
type kernel struct {
	log *slog.Logger

	o *Overlay

	self string

	view *rview.PartialView
	rng  *rand.Rand

	clock           clock.Clock
	exchangeTimeout time.Duration

	metrics *Metrics

	pending *pendingExchange

	// Starts at the clock's nanosecond time, so that a restarted node
	// continues above the sequence numbers its peers have already seen.
	nextSeq         uint64
	broadcastWindow uint
	seen            map[string]*seenWindow

	// Published only from mainLoop.
	broadcasts *rpubsub.Head[roverlay.Broadcast]
	unicasts   *rpubsub.Head[roverlay.Unicast]

	inbound <-chan rtransport.Envelope

	exchangeStarts    chan exchangeStartRequest
	exchangeFailures  chan exchangeFailure
	addNeighbors      chan addNeighborRequest
	broadcastStarts   chan broadcastRequest
	unicastLookups    chan unicastLookup
	neighbourRequests chan chan []string
	peerRequests      chan chan []rview.Peer

	done chan struct{}
}

func newKernel(log *slog.Logger, o *Overlay, cfg Config) *kernel {
	return &kernel{
		log: log,

		o: o,

		self: cfg.Transport.LocalID(),

		view: rview.New(rview.Config{
			UsedCoef: cfg.UsedCoef,
			RNG:      cfg.RNG,
		}),
		rng: cfg.RNG,

		clock:           cfg.Clock,
		exchangeTimeout: cfg.ExchangeTimeout,

		metrics: cfg.Metrics,

		nextSeq:         uint64(cfg.Clock.Now().UnixNano()),
		broadcastWindow: cfg.BroadcastWindow,
		seen:            map[string]*seenWindow{},

		broadcasts: rpubsub.NewHead[roverlay.Broadcast](),
		unicasts:   rpubsub.NewHead[roverlay.Unicast](),

		inbound: cfg.Transport.Inbound(),

		// Unbuffered: callers block until the kernel picks the request up.
		exchangeStarts:    make(chan exchangeStartRequest),
		exchangeFailures:  make(chan exchangeFailure),
		addNeighbors:      make(chan addNeighborRequest),
		broadcastStarts:   make(chan broadcastRequest),
		unicastLookups:    make(chan unicastLookup),
		neighbourRequests: make(chan chan []string),
		peerRequests:      make(chan chan []rview.Peer),

		done: make(chan struct{}),
	}
}

func (k *kernel) mainLoop(ctx context.Context) {
	defer k.o.wg.Done()
	defer close(k.done)

	for {
		select {
		case <-ctx.Done():
			k.log.Info("Stopping due to context cancellation", "cause", context.Cause(ctx))
			if k.pending != nil {
				k.pending.Done <- context.Cause(ctx)
				k.pending = nil
			}
			return

		case env := <-k.inbound:
			k.handleInbound(ctx, env)

		case req := <-k.exchangeStarts:
			k.handleExchangeStart(req)

		case f := <-k.exchangeFailures:
			if k.pending != nil && k.pending.Nonce == f.Nonce {
				k.failExchange(f.Err)
			}

		case <-k.pendingTimeout():
			k.failExchange(ErrExchangeTimeout)

		case req := <-k.addNeighbors:
			k.view.AddNeighbor(req.Peer)
			req.Resp <- struct{}{}

		case req := <-k.broadcastStarts:
			k.handleBroadcastStart(req)

		case req := <-k.unicastLookups:
			k.handleUnicastLookup(req)

		case ch := <-k.neighbourRequests:
			ch <- k.neighbourIDs()

		case ch := <-k.peerRequests:
			ch <- k.view.Peers()
		}

		k.metrics.ViewSize.Set(float64(k.view.Len()))
	}
}

// pendingTimeout returns the timeout channel of the exchange in flight,
// or nil if there is none, so that its select case never fires.
func (k *kernel) pendingTimeout() <-chan time.Time {
	if k.pending == nil {
		return nil
	}
	return k.pending.Timeout
}

func (k *kernel) handleInbound(ctx context.Context, env rtransport.Envelope) {
	switch m := env.Msg.(type) {
	case *rproto.JoinMessage:
		if env.From == k.self {
			k.metrics.InboundDropped.Inc()
			return
		}
		k.view.AddNeighbor(rview.Peer{ID: env.From})

	case *rproto.ExchangeRequest:
		k.handleExchangeRequest(ctx, env.From, m)

	case *rproto.ExchangeReply:
		k.handleExchangeReply(env.From, m)

	case *rproto.BroadcastMessage:
		k.handleBroadcast(ctx, env.From, m)

	case *rproto.UnicastMessage:
		k.unicasts.Publish(roverlay.Unicast{
			From:    env.From,
			Payload: m.Payload,
		})
		k.metrics.UnicastsDelivered.Inc()

	default:
		k.log.Warn(
			"Dropping message of unexpected type",
			"from", env.From,
			"type", env.Msg.Type().String(),
		)
		k.metrics.InboundDropped.Inc()
	}
}

// peerFor returns the view entry for id nearest the tail of the view,
// so that a known connection handle is reused,
// or a bare entry if id is not in the view.
func (k *kernel) peerFor(id string) rview.Peer {
	if i := k.view.Index(id); i != rview.NotFound {
		return k.view.Peers()[i]
	}
	return rview.Peer{ID: id}
}

// uniquePeers returns one entry per distinct ID in the view,
// skipping the given IDs.
// Entries with a connection handle are preferred.
func (k *kernel) uniquePeers(skip ...string) []rview.Peer {
	idx := map[string]int{}
	var out []rview.Peer

outer:
	for _, p := range k.view.All() {
		for _, s := range skip {
			if p.ID == s {
				continue outer
			}
		}

		i, ok := idx[p.ID]
		if !ok {
			idx[p.ID] = len(out)
			out = append(out, p)
			continue
		}
		if out[i].Conn == nil && p.Conn != nil {
			out[i] = p
		}
	}

	return out
}

func (k *kernel) neighbourIDs() []string {
	peers := k.uniquePeers()
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID
	}
	return ids
}

// goSend runs fn on a worker goroutine tracked by the overlay.
func (k *kernel) goSend(fn func()) {
	k.o.wg.Add(1)
	go func() {
		defer k.o.wg.Done()
		fn()
	}()
}
