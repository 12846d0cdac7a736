package p2p

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{TagPing, 1, 2, 3, 4, 5, 6, 7, 8}
	if err := WriteFrame(&buf, 1<<20, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	got, ferr := ReadFrame(&buf, 1<<20)
	if ferr != nil {
		t.Fatalf("read frame: %v", ferr)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("roundtrip mismatch: got %x want %x", got, payload)
	}
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 100)
	if err := WriteFrame(&buf, 10, payload); err == nil {
		t.Fatalf("expected error for oversize payload")
	}
}

func TestReadFrameRejectsOversizeDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 100)
	if err := WriteFrame(&buf, 1<<20, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	_, ferr := ReadFrame(&buf, 10)
	if ferr == nil {
		t.Fatalf("expected frame-too-large error")
	}
	if !ferr.Disconnect {
		t.Fatalf("expected oversize frame to force disconnect")
	}
}

func TestReadFrameTruncatedPayloadDisconnectsWithBanScore(t *testing.T) {
	var buf bytes.Buffer
	var lenBytes [4]byte
	lenBytes[3] = 10
	buf.Write(lenBytes[:])
	buf.Write([]byte{1, 2, 3})

	_, ferr := ReadFrame(&buf, 1<<20)
	if ferr == nil {
		t.Fatalf("expected error for truncated payload")
	}
	if !ferr.Disconnect || ferr.BanScoreDelta == 0 {
		t.Fatalf("expected truncated payload to disconnect with a ban-score penalty, got %+v", ferr)
	}
}
