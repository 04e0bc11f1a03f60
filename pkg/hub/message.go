// Package hub fans panel feeds out to websocket clients. Each hub carries
// one feed (mask JPEGs, video JPEGs or status JSON) and replays its latest
// message to clients that join late, so a freshly opened panel is never
// blank.
package hub

import "github.com/gofiber/contrib/websocket"

// Kind says how a Message is framed on the wire.
type Kind int

const (
	Text   Kind = iota // JSON status payloads
	Binary             // JPEG frames
)

// Message is one broadcast payload.
type Message struct {
	Kind Kind
	Data []byte
}

// TextMessage wraps pre-encoded JSON.
func TextMessage(data []byte) Message {
	return Message{Kind: Text, Data: data}
}

// BinaryMessage wraps an encoded frame.
func BinaryMessage(data []byte) Message {
	return Message{Kind: Binary, Data: data}
}

func (m Message) frameType() int {
	if m.Kind == Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
