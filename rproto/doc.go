// Package rproto contains the wire representation
// of the messages exchanged by the rcyclon overlay.
//
// Every message starts with a single [MessageType] byte.
// Integers are big-endian.
// Strings are prefixed by a 2-byte length,
// and payloads by a 4-byte length.
//
// The partial view itself has no wire format;
// only the overlay driving it does.
package rproto
