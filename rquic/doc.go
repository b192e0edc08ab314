// Package rquic contains an [rtransport.Transport] backed by QUIC.
//
// Each node listens on a single UDP socket.
// Every message travels on its own unidirectional stream,
// framed as the sender's ID followed by the encoded [rproto.Message].
// Node IDs are the addresses nodes advertise, in host:port form.
//
// The sender ID in a frame is self-declared:
// authenticating peers belongs to the TLS configuration supplied by the caller.
package rquic
