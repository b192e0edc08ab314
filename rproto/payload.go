package rproto

import (
	"bytes"
	"fmt"
	"io"
)

// BroadcastMessage is an application payload flooded through the overlay.
// Origin and Seq together identify the broadcast for duplicate suppression.
type BroadcastMessage struct {
	Origin string
	Seq    uint64

	Payload []byte
}

func (BroadcastMessage) Type() MessageType { return BroadcastMessageType }

func (m BroadcastMessage) Encode(w io.Writer) error {
	buf := bytes.NewBuffer(make([]byte, 0, 1+2+len(m.Origin)+8+4+len(m.Payload)))
	_ = buf.WriteByte(byte(BroadcastMessageType))
	putString(buf, m.Origin)
	putUint64(buf, m.Seq)
	putPayload(buf, m.Payload)

	_, err := buf.WriteTo(w)
	return err
}

func (m *BroadcastMessage) decode(r io.Reader) error {
	origin, err := readString(r)
	if err != nil {
		return fmt.Errorf("failed to read origin: %w", err)
	}

	seq, err := readUint64(r)
	if err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}

	p, err := readPayload(r)
	if err != nil {
		return err
	}

	m.Origin = origin
	m.Seq = seq
	m.Payload = p
	return nil
}

// UnicastMessage is an application payload for a single neighbor.
type UnicastMessage struct {
	Payload []byte
}

func (UnicastMessage) Type() MessageType { return UnicastMessageType }

func (m UnicastMessage) Encode(w io.Writer) error {
	buf := bytes.NewBuffer(make([]byte, 0, 1+4+len(m.Payload)))
	_ = buf.WriteByte(byte(UnicastMessageType))
	putPayload(buf, m.Payload)

	_, err := buf.WriteTo(w)
	return err
}

func (m *UnicastMessage) decode(r io.Reader) error {
	p, err := readPayload(r)
	if err != nil {
		return err
	}
	m.Payload = p
	return nil
}
