package audio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
)

func TestFromBinaryCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	frame, err := FromBinary(src)
	if err != nil {
		t.Fatalf("FromBinary failed: %v", err)
	}

	src[0] = 99
	if frame[0] != 1 {
		t.Fatalf("expected frame to be a copy, got %v", frame)
	}
}

func TestFromBinaryRejectsEmpty(t *testing.T) {
	if _, err := FromBinary(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
	if _, err := FromBinary([]byte{}); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestFromTextStandardBase64(t *testing.T) {
	raw := []byte{0x00, 0x10, 0x7f, 0xff}
	frame, err := FromText(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("FromText failed: %v", err)
	}
	if !bytes.Equal(frame, raw) {
		t.Fatalf("expected %v, got %v", raw, frame)
	}
}

func TestFromTextUnpaddedBase64(t *testing.T) {
	raw := []byte("pcm16 audio chunk")
	encoded := base64.RawStdEncoding.EncodeToString(raw)
	frame, err := FromText(encoded)
	if err != nil {
		t.Fatalf("FromText failed for unpadded input: %v", err)
	}
	if !bytes.Equal(frame, raw) {
		t.Fatalf("expected %q, got %q", raw, frame)
	}
}

func TestFromTextRejectsGarbage(t *testing.T) {
	if _, err := FromText("!!! not base64 !!!"); err == nil {
		t.Fatal("expected error for undecodable input")
	}
}

func TestFromTextRejectsEmpty(t *testing.T) {
	if _, err := FromText(""); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
	// base64 of zero bytes
	if _, err := FromText(base64.StdEncoding.EncodeToString(nil)); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame for empty decode, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}

	frame, err := Normalize(websocket.BinaryMessage, raw)
	if err != nil {
		t.Fatalf("Normalize binary failed: %v", err)
	}
	if !bytes.Equal(frame, raw) {
		t.Fatalf("expected %v, got %v", raw, frame)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	frame, err = Normalize(websocket.TextMessage, []byte(encoded))
	if err != nil {
		t.Fatalf("Normalize text failed: %v", err)
	}
	if !bytes.Equal(frame, raw) {
		t.Fatalf("expected %v, got %v", raw, frame)
	}

	if _, err := Normalize(websocket.PingMessage, raw); err == nil {
		t.Fatal("expected error for unsupported message type")
	}
}
