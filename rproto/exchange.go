package rproto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Entry is a partial view entry as it crosses the wire.
// Connection handles are local to a node and are never sent.
type Entry struct {
	ID  string
	Age uint32
}

// ExchangeRequest carries the initiator's sample to the exchange target.
type ExchangeRequest struct {
	// Echoed in the reply so the initiator can match it
	// against its single in-flight exchange.
	Nonce uint64

	Entries []Entry
}

func (ExchangeRequest) Type() MessageType { return ExchangeRequestMessageType }

func (m ExchangeRequest) Encode(w io.Writer) error {
	return encodeExchange(ExchangeRequestMessageType, m.Nonce, m.Entries, w)
}

func (m *ExchangeRequest) decode(r io.Reader) (err error) {
	m.Nonce, m.Entries, err = decodeExchange(r)
	return err
}

// ExchangeReply carries the target's sample back to the initiator.
type ExchangeReply struct {
	Nonce uint64

	Entries []Entry
}

func (ExchangeReply) Type() MessageType { return ExchangeReplyMessageType }

func (m ExchangeReply) Encode(w io.Writer) error {
	return encodeExchange(ExchangeReplyMessageType, m.Nonce, m.Entries, w)
}

func (m *ExchangeReply) decode(r io.Reader) (err error) {
	m.Nonce, m.Entries, err = decodeExchange(r)
	return err
}

func encodeExchange(
	msgType MessageType,
	nonce uint64,
	entries []Entry,
	w io.Writer,
) error {
	if len(entries) > MaxEntries {
		panic(fmt.Errorf(
			"ILLEGAL: attempted to encode exchange with too many entries: got %d, limit is %d",
			len(entries), MaxEntries,
		))
	}

	// Type, nonce, count.
	sz := 1 + 8 + 1
	for _, e := range entries {
		sz += 2 + len(e.ID) + 4
	}

	buf := bytes.NewBuffer(make([]byte, 0, sz))
	_ = buf.WriteByte(byte(msgType))
	putUint64(buf, nonce)
	_ = buf.WriteByte(byte(len(entries)))

	for _, e := range entries {
		putString(buf, e.ID)
		putUint32(buf, e.Age)
	}

	_, err := buf.WriteTo(w)
	return err
}

func decodeExchange(r io.Reader) (uint64, []Entry, error) {
	// Assume the message type byte has already been read by the caller.

	nonce, err := readUint64(r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read nonce: %w", err)
	}

	var szBuf [1]byte
	if _, err := io.ReadFull(r, szBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("failed to read number of entries: %w", err)
	}

	// An empty sample is legal:
	// a target with an empty view still answers.
	entries := make([]Entry, szBuf[0])
	for i := range entries {
		id, err := readString(r)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read entry %d id: %w", i, err)
		}
		if id == "" {
			return 0, nil, errors.New("decoded entry with empty id")
		}

		age, err := readUint32(r)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read entry %d age: %w", i, err)
		}

		entries[i] = Entry{ID: id, Age: age}
	}

	return nonce, entries, nil
}
