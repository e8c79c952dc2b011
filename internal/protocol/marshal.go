package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Pool of buffers shared by concurrent broadcasters.
var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

// Marshal encodes an event envelope.
func Marshal(typ string, payload any) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(Event{Type: typ, Payload: payload}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}

	// Copy out of the pooled buffer, dropping the encoder's newline.
	out := make([]byte, buf.Len()-1)
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeCommand parses an inbound envelope and its payload. The returned
// value is a pointer to the payload struct for the command type.
func DecodeCommand(data []byte) (string, any, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}

	var payload any
	switch cmd.Type {
	case TypeJoin:
		payload = &Join{}
	case TypeReconnect:
		payload = &Reconnect{}
	case TypeSetReady:
		payload = &SetReady{}
	case TypeSubmitBet:
		payload = &SubmitBet{}
	case TypeSubmitBid:
		payload = &SubmitBid{}
	case TypeAddBots, TypeRemoveBots:
		payload = &BotCount{}
	case TypeRoundReady, TypePlayAgain:
		return cmd.Type, nil, nil
	default:
		return cmd.Type, nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, cmd.Type)
	}

	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, payload); err != nil {
			return cmd.Type, nil, fmt.Errorf("decode %s: %w", cmd.Type, err)
		}
	}
	return cmd.Type, payload, nil
}
