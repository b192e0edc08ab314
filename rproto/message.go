package rproto

import (
	"bufio"
	"fmt"
	"io"
)

// MessageType is a single byte header indicating the type of message.
type MessageType byte

const (
	// Keep zero reserved.
	// Not using iota here, to avoid possibility of values changing across the wire.

	// A node asks the receiver to add it as a neighbor.
	JoinMessageType MessageType = 1

	// An initiator offers its sample to the target of an exchange.
	ExchangeRequestMessageType MessageType = 2

	// The target of an exchange answers with its own sample.
	ExchangeReplyMessageType MessageType = 3

	// Flooded application payload.
	BroadcastMessageType MessageType = 4

	// Point-to-point application payload.
	UnicastMessageType MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case JoinMessageType:
		return "Join"
	case ExchangeRequestMessageType:
		return "ExchangeRequest"
	case ExchangeReplyMessageType:
		return "ExchangeReply"
	case BroadcastMessageType:
		return "Broadcast"
	case UnicastMessageType:
		return "Unicast"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

const (
	// MaxEntries is the largest number of entries in an exchange sample.
	// It is the largest count that fits in the one-byte count header.
	MaxEntries = 255

	// MaxPayloadSize bounds application payloads,
	// so that a decoder never allocates an attacker-chosen size.
	MaxPayloadSize = 1 << 20

	maxStringLen = 1<<16 - 1
)

type byteReader interface {
	io.Reader
	io.ByteReader
}

// Message is implemented by every message type in this package.
type Message interface {
	Type() MessageType

	// Encode writes the message, including its type header, to w.
	Encode(w io.Writer) error
}

// Decode reads a single message from r.
// The returned value is always a pointer to one of the message types
// in this package, such as *ExchangeRequest.
//
// If r is not an [io.ByteReader], Decode wraps it in a [bufio.Reader],
// which may consume bytes past the end of the message.
func Decode(r io.Reader) (Message, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	b, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read message type: %w", err)
	}

	var m interface {
		Message
		decode(io.Reader) error
	}
	switch t := MessageType(b); t {
	case JoinMessageType:
		m = new(JoinMessage)
	case ExchangeRequestMessageType:
		m = new(ExchangeRequest)
	case ExchangeReplyMessageType:
		m = new(ExchangeReply)
	case BroadcastMessageType:
		m = new(BroadcastMessage)
	case UnicastMessageType:
		m = new(UnicastMessage)
	default:
		return nil, fmt.Errorf("unknown message type %d", b)
	}

	if err := m.decode(br); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", m.Type(), err)
	}

	return m, nil
}
