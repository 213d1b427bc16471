package audio

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// ErrEmptyFrame is returned for zero-length audio payloads.
var ErrEmptyFrame = errors.New("empty audio frame")

// Frame is a normalized binary audio payload ready to forward to the
// transcription session.
type Frame []byte

// FromBinary wraps a raw binary payload. The bytes are copied so the caller
// may reuse its buffer (websocket read buffers are recycled between frames).
func FromBinary(b []byte) (Frame, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	frame := make(Frame, len(b))
	copy(frame, b)
	return frame, nil
}

// FromText decodes a base64-encoded payload. Standard encoding is tried
// first, then the unpadded variant; anything else is rejected.
func FromText(s string) (Frame, error) {
	if s == "" {
		return nil, ErrEmptyFrame
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	if len(decoded) == 0 {
		return nil, ErrEmptyFrame
	}
	return Frame(decoded), nil
}

// Normalize maps a websocket message to an audio frame. Binary frames pass
// through as-is; text frames carry base64-encoded audio.
func Normalize(messageType int, data []byte) (Frame, error) {
	switch messageType {
	case websocket.BinaryMessage:
		return FromBinary(data)
	case websocket.TextMessage:
		return FromText(string(data))
	default:
		return nil, fmt.Errorf("unsupported audio message type %d", messageType)
	}
}
