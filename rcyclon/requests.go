package rcyclon

import (
	"time"

	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rview"
)

// exchangeStartRequest asks the kernel to begin an exchange.
type exchangeStartRequest struct {
	Resp chan exchangeStartResponse
}

type exchangeStartResponse struct {
	Err error

	Target rview.Peer
	Msg    *rproto.ExchangeRequest

	// Receives the outcome of the exchange exactly once.
	Done <-chan error
}

// exchangeFailure reports that the exchange request could not be sent.
type exchangeFailure struct {
	Nonce uint64
	Err   error
}

// pendingExchange is the kernel's record of the exchange in flight.
type pendingExchange struct {
	Target rview.Peer
	Nonce  uint64

	// The sample as drawn from the view, before the target
	// was replaced by this node; removed from the view on reply.
	Sample []rview.Peer

	Timeout <-chan time.Time

	Done chan error
}

type addNeighborRequest struct {
	Peer rview.Peer
	Resp chan struct{}
}

type broadcastRequest struct {
	Payload []byte
	Resp    chan broadcastResponse
}

type broadcastResponse struct {
	Msg     *rproto.BroadcastMessage
	Targets []rview.Peer
}

type unicastLookup struct {
	ID   string
	Resp chan unicastLookupResponse
}

type unicastLookupResponse struct {
	Peer  rview.Peer
	Found bool
}
