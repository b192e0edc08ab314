package rproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// The put helpers write to a bytes.Buffer, which never fails,
// so they do not return errors.

func putString(buf *bytes.Buffer, s string) {
	if len(s) > maxStringLen {
		panic(fmt.Errorf(
			"ILLEGAL: string too long to encode: got %d bytes, limit is %d",
			len(s), maxStringLen,
		))
	}
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(s)))
	_, _ = buf.Write(lb[:])
	_, _ = buf.WriteString(s)
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, _ = buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, _ = buf.Write(b[:])
}

func putPayload(buf *bytes.Buffer, p []byte) {
	if len(p) > MaxPayloadSize {
		panic(fmt.Errorf(
			"ILLEGAL: payload too large to encode: got %d bytes, limit is %d",
			len(p), MaxPayloadSize,
		))
	}
	putUint32(buf, uint32(len(p)))
	_, _ = buf.Write(p)
}

func readString(r io.Reader) (string, error) {
	var lb [2]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return "", fmt.Errorf("failed to read string length: %w", err)
	}

	b := make([]byte, binary.BigEndian.Uint16(lb[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to read string: %w", err)
	}
	return string(b), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readPayload(r io.Reader) ([]byte, error) {
	sz, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload length: %w", err)
	}
	if sz > MaxPayloadSize {
		return nil, fmt.Errorf(
			"payload length %d exceeds limit of %d", sz, MaxPayloadSize,
		)
	}

	p := make([]byte, sz)
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return p, nil
}
