package p2p

import (
	"net"
	"testing"

	"github.com/photon-chain/node/chainparams"
)

func testParams() chainparams.Params {
	p := chainparams.DevnetParams()
	return p
}

// tcpPair returns both ends of a loopback TCP connection. Unlike net.Pipe
// it buffers writes, so both sides can send their Hello before reading.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-accepted
	if server == nil {
		t.Fatalf("accept failed")
	}
	return client, server
}

func TestHandshakeNegotiatesMinVersion(t *testing.T) {
	clientConn, serverConn := tcpPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	params := testParams()
	genesis := sampleHash(9)

	clientHello := Hello{NetworkID: params.NetworkID, GenesisHash: genesis, ProtocolVersion: params.ProtocolVersion}
	serverParams := params
	serverParams.ProtocolVersion = params.ProtocolVersion - 1
	serverHello := Hello{NetworkID: params.NetworkID, GenesisHash: genesis, ProtocolVersion: serverParams.ProtocolVersion}

	type result struct {
		res *HandshakeResult
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		res, err := Handshake(clientConn, params, clientHello)
		clientCh <- result{res, err}
	}()
	go func() {
		res, err := Handshake(serverConn, serverParams, serverHello)
		serverCh <- result{res, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	if clientRes.err != nil {
		t.Fatalf("client handshake: %v", clientRes.err)
	}
	if serverRes.err != nil {
		t.Fatalf("server handshake: %v", serverRes.err)
	}
	if clientRes.res.NegotiatedVersion != serverParams.ProtocolVersion {
		t.Fatalf("expected negotiated version %d, got %d", serverParams.ProtocolVersion, clientRes.res.NegotiatedVersion)
	}
	if serverRes.res.NegotiatedVersion != serverParams.ProtocolVersion {
		t.Fatalf("expected negotiated version %d, got %d", serverParams.ProtocolVersion, serverRes.res.NegotiatedVersion)
	}
}

func TestHandshakeRejectsNetworkMismatch(t *testing.T) {
	clientConn, serverConn := tcpPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	params := testParams()
	genesis := sampleHash(9)

	clientHello := Hello{NetworkID: params.NetworkID, GenesisHash: genesis, ProtocolVersion: params.ProtocolVersion}
	serverHello := Hello{NetworkID: params.NetworkID + 1, GenesisHash: genesis, ProtocolVersion: params.ProtocolVersion}

	type result struct {
		res *HandshakeResult
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		res, err := Handshake(clientConn, params, clientHello)
		clientCh <- result{res, err}
	}()
	go func() {
		res, err := Handshake(serverConn, params, serverHello)
		serverCh <- result{res, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	if clientRes.err == nil {
		t.Fatalf("expected client handshake to fail on network_id mismatch")
	}
	if serverRes.err == nil {
		t.Fatalf("expected server handshake to fail on network_id mismatch")
	}
}

func TestHandshakeRejectsGenesisMismatch(t *testing.T) {
	clientConn, serverConn := tcpPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	params := testParams()

	clientHello := Hello{NetworkID: params.NetworkID, GenesisHash: sampleHash(1), ProtocolVersion: params.ProtocolVersion}
	serverHello := Hello{NetworkID: params.NetworkID, GenesisHash: sampleHash(2), ProtocolVersion: params.ProtocolVersion}

	type result struct {
		res *HandshakeResult
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		res, err := Handshake(clientConn, params, clientHello)
		clientCh <- result{res, err}
	}()
	go func() {
		res, err := Handshake(serverConn, params, serverHello)
		serverCh <- result{res, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	if clientRes.err == nil || serverRes.err == nil {
		t.Fatalf("expected both sides to reject genesis_hash mismatch")
	}
}
