package rproto

import "io"

// JoinMessage asks the receiver to add the sender to its partial view.
// The sender's identity comes from the transport envelope.
type JoinMessage struct{}

func (JoinMessage) Type() MessageType { return JoinMessageType }

func (JoinMessage) Encode(w io.Writer) error {
	_, err := w.Write([]byte{byte(JoinMessageType)})
	return err
}

func (*JoinMessage) decode(io.Reader) error { return nil }
