package rquic

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rtransport"
	"github.com/quic-go/quic-go"
)

// maxFrameSize bounds a single inbound stream:
// the sender ID plus the largest legal message.
const maxFrameSize = 2 + 1<<16 + 1 + rproto.MaxPayloadSize + 1<<16

// Application error codes used when closing connections.
const (
	closedByOwner quic.ApplicationErrorCode = 0
	badFrame      quic.StreamErrorCode      = 1
)

var _ rtransport.Transport = (*Transport)(nil)

// Transport is an [rtransport.Transport] over QUIC.
type Transport struct {
	log *slog.Logger

	wg sync.WaitGroup

	id string

	qt *quic.Transport
	ql *quic.Listener

	tlsConf  *tls.Config
	quicConf *quic.Config

	readTimeout time.Duration

	inbound chan rtransport.Envelope

	mu    sync.Mutex
	conns map[string]*Conn
}

// New returns a Transport listening on cfg.UDPConn.
// The ctx parameter controls the lifecycle of the Transport;
// cancel it to stop, and then use [*Transport.Wait]
// to block until all background work has completed.
//
// New returns runtime errors that happen during initialization.
// Configuration errors cause a panic.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Transport, error) {
	cfg.validate(log)

	quicConf := cfg.QUIC
	if quicConf == nil {
		quicConf = DefaultQUICConfig()
	}

	inboundSize := cfg.InboundSize
	if inboundSize <= 0 {
		inboundSize = 64
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}

	qt := &quic.Transport{
		Conn: cfg.UDPConn,

		// Contexts associated with the underlying connections
		// are derived from the transport's lifecycle context.
		ConnContext: func(context.Context) context.Context {
			return ctx
		},
	}

	// Assume we can't take ownership of the input TLS config.
	tlsConf := cfg.TLS.Clone()

	ql, err := qt.Listen(tlsConf, quicConf)
	if err != nil {
		return nil, fmt.Errorf("failed to set up QUIC listener: %w", err)
	}

	t := &Transport{
		log: log,

		id: cfg.AdvertiseAddr,

		qt: qt,
		ql: ql,

		tlsConf:  tlsConf,
		quicConf: quicConf,

		readTimeout: readTimeout,

		inbound: make(chan rtransport.Envelope, inboundSize),

		conns: map[string]*Conn{},
	}

	t.wg.Add(2)
	go t.acceptConnections(ctx)
	go t.closeOnDone(ctx)

	return t, nil
}

// Wait blocks until the transport has finished all background work.
func (t *Transport) Wait() {
	t.wg.Wait()
}

func (t *Transport) LocalID() string { return t.id }

func (t *Transport) Inbound() <-chan rtransport.Envelope { return t.inbound }

// Dial returns the cached connection to id, or opens a new one.
func (t *Transport) Dial(ctx context.Context, id string) (rtransport.Conn, error) {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if ok {
		return c, nil
	}

	addr, err := net.ResolveUDPAddr("udp", id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", id, err)
	}

	qc, err := t.qt.Dial(ctx, addr, t.tlsConf, t.quicConf)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %q: %w", id, err)
	}

	c = &Conn{t: t, qc: qc, remoteID: id}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.conns[id]; ok {
		// Lost a race with a concurrent dial; keep the first connection.
		_ = qc.CloseWithError(closedByOwner, "duplicate connection")
		return existing, nil
	}
	t.conns[id] = c

	// The dialed connection is also where the remote may open streams back,
	// although a remote normally dials its own connection to us.
	t.wg.Add(1)
	go t.handleConn(qc)

	return c, nil
}

func (t *Transport) forget(c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conns[c.remoteID] == c {
		delete(t.conns, c.remoteID)
	}
}

func (t *Transport) closeOnDone(ctx context.Context) {
	defer t.wg.Done()

	<-ctx.Done()

	if err := t.ql.Close(); err != nil {
		t.log.Debug("Failed to close QUIC listener", "err", err)
	}
	if err := t.qt.Close(); err != nil {
		t.log.Debug("Failed to close QUIC transport", "err", err)
	}
}

// acceptConnections accepts incoming connections
// and starts a stream handler for each.
func (t *Transport) acceptConnections(ctx context.Context) {
	defer t.wg.Done()

	for {
		qc, err := t.ql.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				t.log.Info(
					"Accept loop quitting",
					"cause", context.Cause(ctx),
				)
				return
			}

			// Debug-level because this could be spammy if we are getting a lot of garbage connections.
			t.log.Debug("Failed to accept incoming connection", "err", err)
			continue
		}

		t.wg.Add(1)
		go t.handleConn(qc)
	}
}

// handleConn accepts every unidirectional stream the remote opens,
// until the connection closes.
// Each stream carries one frame and is read on its own goroutine,
// so a slow stream does not hold up the others.
func (t *Transport) handleConn(qc quic.Connection) {
	defer t.wg.Done()

	ctx := qc.Context()
	for {
		rs, err := qc.AcceptUniStream(ctx)
		if err != nil {
			// Closed by either side, or the transport is shutting down.
			t.log.Debug(
				"Stopped accepting streams",
				"remote_addr", qc.RemoteAddr().String(),
				"err", err,
			)
			return
		}

		t.wg.Add(1)
		go t.handleStream(ctx, qc, rs)
	}
}

func (t *Transport) handleStream(ctx context.Context, qc quic.Connection, rs quic.ReceiveStream) {
	defer t.wg.Done()

	env, err := t.readFrame(rs)
	if err != nil {
		t.log.Info(
			"Dropping malformed frame",
			"remote_addr", qc.RemoteAddr().String(),
			"err", err,
		)
		rs.CancelRead(badFrame)
		return
	}

	select {
	case <-ctx.Done():
	case t.inbound <- env:
	}
}

func (t *Transport) readFrame(rs quic.ReceiveStream) (rtransport.Envelope, error) {
	if err := rs.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return rtransport.Envelope{}, fmt.Errorf("failed to set read deadline: %w", err)
	}

	r := bufio.NewReader(io.LimitReader(rs, maxFrameSize))

	var lb [2]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return rtransport.Envelope{}, fmt.Errorf("failed to read sender length: %w", err)
	}
	from := make([]byte, binary.BigEndian.Uint16(lb[:]))
	if _, err := io.ReadFull(r, from); err != nil {
		return rtransport.Envelope{}, fmt.Errorf("failed to read sender: %w", err)
	}
	if len(from) == 0 {
		return rtransport.Envelope{}, errors.New("frame has empty sender")
	}

	m, err := rproto.Decode(r)
	if err != nil {
		return rtransport.Envelope{}, err
	}

	return rtransport.Envelope{From: string(from), Msg: m}, nil
}

// Conn is a QUIC connection to one remote node.
type Conn struct {
	t *Transport

	qc quic.Connection

	remoteID string
}

func (c *Conn) RemoteID() string { return c.remoteID }

// Send writes m on a new unidirectional stream.
// A failed send drops the connection from the transport's cache,
// so the next Dial opens a fresh one.
func (c *Conn) Send(ctx context.Context, m rproto.Message) error {
	var buf bytes.Buffer
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(c.t.id)))
	_, _ = buf.Write(lb[:])
	_, _ = buf.WriteString(c.t.id)
	if err := m.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.Type(), err)
	}

	s, err := c.qc.OpenUniStreamSync(ctx)
	if err != nil {
		c.t.forget(c)
		return fmt.Errorf("failed to open stream to %s: %w", c.remoteID, err)
	}

	if dl, ok := ctx.Deadline(); ok {
		if err := s.SetWriteDeadline(dl); err != nil {
			s.CancelWrite(badFrame)
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := buf.WriteTo(s); err != nil {
		s.CancelWrite(badFrame)
		c.t.forget(c)
		return fmt.Errorf("failed to write %s to %s: %w", m.Type(), c.remoteID, err)
	}

	return s.Close()
}

// Close closes the underlying QUIC connection.
func (c *Conn) Close() error {
	c.t.forget(c)
	return c.qc.CloseWithError(closedByOwner, "closed")
}
