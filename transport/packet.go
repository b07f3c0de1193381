package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/zishang520/engine.io-go-parser/packet"
	eio "github.com/zishang520/engine.io-go-parser/parser"
	_types "github.com/zishang520/engine.io-go-parser/types"
	sio "github.com/zishang520/socket.io-go-parser/v2/parser"
)

const defaultNamespace = "/"

var ErrBinaryPacket = errors.New("binary packets are not supported")

// codec turns Socket.IO packets into Engine.IO v4 text frames. It keeps no
// state and is shared by every connection of a Transport.
type codec struct {
	engine  eio.Parser
	encoder sio.Encoder
}

func newCodec() codec {
	return codec{engine: eio.Parserv4(), encoder: sio.NewEncoder()}
}

func (c codec) frame(t packet.Type, data io.Reader) ([]byte, error) {
	buf, err := c.engine.EncodePacket(&packet.Packet{Type: t, Data: data}, false)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", t, err)
	}
	return buf.Bytes(), nil
}

// message wraps one Socket.IO packet into an Engine.IO message frame.
func (c codec) message(p *sio.Packet) ([]byte, error) {
	if p.Nsp == "" {
		p.Nsp = defaultNamespace
	}
	parts := c.encoder.Encode(p)
	if len(parts) != 1 {
		return nil, ErrBinaryPacket
	}
	return c.frame(packet.MESSAGE, parts[0])
}

// event builds the frame of an EVENT with one JSON payload.
func (c codec) event(name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	return c.message(&sio.Packet{Type: sio.EVENT, Data: args})
}

// inbound decodes the frames of one connection. The Socket.IO decoder is
// stateful, so every connection gets its own.
type inbound struct {
	engine  eio.Parser
	decoder sio.Decoder
	pending []*sio.Packet
}

func newInbound() *inbound {
	in := &inbound{engine: eio.Parserv4(), decoder: sio.NewDecoder()}
	in.decoder.On("decoded", func(args ...any) {
		if len(args) == 0 {
			return
		}
		if p, ok := args[0].(*sio.Packet); ok {
			in.pending = append(in.pending, p)
		}
	})
	return in
}

// read decodes one text frame. The Socket.IO packets completed by an
// Engine.IO message are returned in order.
func (in *inbound) read(frame []byte) (*packet.Packet, []*sio.Packet, error) {
	p, err := in.engine.DecodePacket(_types.NewStringBuffer(frame))
	if err != nil {
		return nil, nil, fmt.Errorf("decode frame: %w", err)
	}
	if p.Type != packet.MESSAGE {
		return p, nil, nil
	}

	in.pending = nil
	if err := in.decoder.Add(p.Data); err != nil {
		return p, nil, fmt.Errorf("decode packet: %w", err)
	}
	packets := in.pending
	in.pending = nil
	return p, packets, nil
}

func (in *inbound) close() {
	in.decoder.Destroy()
}

// eventArgs splits an EVENT packet into its name and first argument.
func eventArgs(p *sio.Packet) (string, json.RawMessage, error) {
	args, ok := p.Data.([]any)
	if !ok || len(args) == 0 {
		return "", nil, errors.New("event without name")
	}
	name, ok := args[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("event name %v is not a string", args[0])
	}
	if len(args) < 2 {
		return name, json.RawMessage("null"), nil
	}
	payload, err := json.Marshal(args[1])
	if err != nil {
		return "", nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return name, payload, nil
}

// connectError extracts the message of a CONNECT_ERROR packet.
func connectError(p *sio.Packet) string {
	switch data := p.Data.(type) {
	case map[string]any:
		if message, ok := data["message"].(string); ok && message != "" {
			return message
		}
	case string:
		return data
	}
	raw, _ := json.Marshal(p.Data)
	return string(raw)
}
