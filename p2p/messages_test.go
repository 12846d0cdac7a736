package p2p

import (
	"testing"

	"github.com/photon-chain/node/consensus"
)

func sampleHash(b byte) consensus.Hash {
	var h consensus.Hash
	h[0] = b
	return h
}

func TestHelloRoundTrip(t *testing.T) {
	h := Hello{
		NetworkID:       7,
		GenesisHash:     sampleHash(1),
		TipHeight:       42,
		TipHash:         sampleHash(2),
		ProtocolVersion: 3,
	}
	payload := encodeHello(h)
	tag, body, err := decodeTypeTag(payload)
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	if tag != TagHello {
		t.Fatalf("expected TagHello, got %d", tag)
	}
	got, err := decodeHello(body)
	if err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if got != h {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, h)
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	ping := Ping{Nonce: 123456789}
	_, body, err := decodeTypeTag(encodePing(ping))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	gotPing, err := decodePing(body)
	if err != nil || gotPing != ping {
		t.Fatalf("ping roundtrip mismatch: got %+v err %v", gotPing, err)
	}

	pong := Pong{Nonce: 987654321}
	_, body, err = decodeTypeTag(encodePong(pong))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	gotPong, err := decodePong(body)
	if err != nil || gotPong != pong {
		t.Fatalf("pong roundtrip mismatch: got %+v err %v", gotPong, err)
	}
}

func TestGetHeadersRoundTrip(t *testing.T) {
	req := GetHeaders{FromHeight: 1000, Max: 500}
	_, body, err := decodeTypeTag(encodeGetHeaders(req))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	got, err := decodeGetHeaders(body)
	if err != nil || got != req {
		t.Fatalf("getheaders roundtrip mismatch: got %+v err %v", got, err)
	}
}

func TestHashListMessagesRoundTrip(t *testing.T) {
	hashes := []consensus.Hash{sampleHash(1), sampleHash(2), sampleHash(3)}

	gb := GetBlocks{Hashes: hashes}
	_, body, err := decodeTypeTag(encodeGetBlocks(gb))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	gotGB, err := decodeGetBlocks(body)
	if err != nil || len(gotGB.Hashes) != len(hashes) {
		t.Fatalf("getblocks roundtrip mismatch: got %+v err %v", gotGB, err)
	}

	inv := InvTx{Txids: hashes}
	_, body, err = decodeTypeTag(encodeInvTx(inv))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	gotInv, err := decodeInvTx(body)
	if err != nil || len(gotInv.Txids) != len(hashes) {
		t.Fatalf("invtx roundtrip mismatch: got %+v err %v", gotInv, err)
	}

	gt := GetTx{Txids: hashes}
	_, body, err = decodeTypeTag(encodeGetTx(gt))
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	gotGT, err := decodeGetTx(body)
	if err != nil || len(gotGT.Txids) != len(hashes) {
		t.Fatalf("gettx roundtrip mismatch: got %+v err %v", gotGT, err)
	}
}

func TestDecodeHeadersRejectsOversizeCount(t *testing.T) {
	payload := []byte{TagHeaders, 0xfe, 0xff, 0xff, 0xff, 0xff}
	_, body, err := decodeTypeTag(payload)
	if err != nil {
		t.Fatalf("decode type tag: %v", err)
	}
	if _, err := decodeHeaders(body); err == nil {
		t.Fatalf("expected error for implausible header count")
	}
}

func TestDecodeTypeTagRejectsEmptyPayload(t *testing.T) {
	if _, _, err := decodeTypeTag(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
