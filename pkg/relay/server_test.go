// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/volly/volly-go/pkg/msgs"
)

// randomPort returns a random open TCP port.
func randomPort(t *testing.T) (port int) {
	if addr, err := net.ResolveTCPAddr("tcp", "localhost:0"); err != nil {
		t.Fatal(err)
	} else if l, err := net.ListenTCP("tcp", addr); err != nil {
		t.Fatal(err)
	} else {
		port = l.Addr().(*net.TCPAddr).Port
		_ = l.Close()
	}
	return
}

// isAddrReachable checks if a TCP address - like localhost:2342 - is reachable.
func isAddrReachable(addr string) (open bool) {
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err != nil {
		open = false
	} else {
		open = true
		_ = conn.Close()
	}
	return
}

// startServer brings a Server up on a random port and returns it with its
// address.
func startServer(t *testing.T) (server *Server, addr string) {
	addr = fmt.Sprintf("localhost:%d", randomPort(t))

	server, err := NewServer(addr)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if isAddrReachable(addr) {
			break
		} else if i == 3 {
			t.Fatal("Server seems to be unreachable")
		}
	}

	return
}

func dialPeer(t *testing.T, addr string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func sendRaw(t *testing.T, conn *websocket.Conn, data []byte) {
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

func sendMsg(t *testing.T, conn *websocket.Conn, m msgs.Message) {
	if data, err := msgs.Marshal(m); err != nil {
		t.Fatal(err)
	} else {
		sendRaw(t, conn, data)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) msgs.Message {
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	m, err := msgs.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// register a connection and check the acknowledgement.
func register(t *testing.T, conn *websocket.Conn, userId, publicKey string) {
	sendMsg(t, conn, msgs.NewRegister(userId, publicKey))

	if ack, ok := readMsg(t, conn).(*msgs.Registered); !ok {
		t.Fatalf("expected *msgs.Registered")
	} else if !ack.Success || ack.UserId != userId {
		t.Fatalf("unexpected acknowledgement: %v", ack)
	}
}

func expectError(t *testing.T, conn *websocket.Conn, text string) {
	if e, ok := readMsg(t, conn).(*msgs.Error); !ok {
		t.Fatal("expected *msgs.Error")
	} else if e.Message != text {
		t.Fatalf("expected error %q, got %q", text, e.Message)
	}
}

func TestRelayRegisterDiscover(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()
	bob := dialPeer(t, addr)
	defer func() { _ = bob.Close() }()

	register(t, alice, "alice", "alice-key")
	register(t, bob, "bob", "bob-key")

	sendMsg(t, alice, msgs.NewDiscover("bob"))
	if resp, ok := readMsg(t, alice).(*msgs.DiscoverResponse); !ok {
		t.Fatal("expected *msgs.DiscoverResponse")
	} else if !resp.Online || resp.UserId != "bob" || resp.PublicKey != "bob-key" {
		t.Fatalf("unexpected discover-response: %v", resp)
	}

	sendMsg(t, alice, msgs.NewDiscover("charlie"))
	if resp, ok := readMsg(t, alice).(*msgs.DiscoverResponse); !ok {
		t.Fatal("expected *msgs.DiscoverResponse")
	} else if resp.Online || resp.PublicKey != "" {
		t.Fatalf("charlie must be offline: %v", resp)
	}
}

func TestRelayOfferRouting(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()
	bob := dialPeer(t, addr)
	defer func() { _ = bob.Close() }()

	register(t, alice, "alice", "alice-key")
	register(t, bob, "bob", "bob-key")

	// the claimed "from" is overwritten with the registered identity
	sendMsg(t, alice, msgs.NewOffer("mallory", "bob", json.RawMessage(`{"sdp":"X"}`)))

	if offer, ok := readMsg(t, bob).(*msgs.Offer); !ok {
		t.Fatal("expected *msgs.Offer")
	} else if offer.From != "alice" || offer.To != "bob" {
		t.Fatalf("unexpected parties: %s -> %s", offer.From, offer.To)
	} else if string(offer.Offer) != `{"sdp":"X"}` {
		t.Fatalf("payload changed: %s", offer.Offer)
	}

	sendMsg(t, bob, msgs.NewAnswer("", "alice", json.RawMessage(`{"sdp":"Y"}`)))

	if answer, ok := readMsg(t, alice).(*msgs.Answer); !ok {
		t.Fatal("expected *msgs.Answer")
	} else if answer.From != "bob" || string(answer.Answer) != `{"sdp":"Y"}` {
		t.Fatalf("unexpected answer: %v", answer)
	}
}

func TestRelayUserNotOnline(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()

	register(t, alice, "alice", "alice-key")

	sendMsg(t, alice, msgs.NewOffer("alice", "charlie", json.RawMessage(`{"sdp":"X"}`)))
	expectError(t, alice, "User charlie is not online")
}

func TestRelayErrorFormats(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	conn := dialPeer(t, addr)
	defer func() { _ = conn.Close() }()

	sendRaw(t, conn, []byte("{"))
	expectError(t, conn, "Invalid message format")

	sendRaw(t, conn, []byte(`{"type":"bogus"}`))
	expectError(t, conn, "Unknown message type")

	sendRaw(t, conn, []byte(`{"type":"offer","to":"bob","offer":{}}`))
	expectError(t, conn, "Must register first")

	sendRaw(t, conn, []byte(`{"type":"register"}`))
	expectError(t, conn, "Missing required fields")

	// the connection survived every protocol error
	register(t, conn, "alice", "alice-key")

	sendRaw(t, conn, []byte(`{"type":"register","userId":"alice"}`))
	expectError(t, conn, "Missing required fields")
}

func TestRelayDisconnectRemovesPresence(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()
	bob := dialPeer(t, addr)

	register(t, alice, "alice", "alice-key")
	register(t, bob, "bob", "bob-key")

	_ = bob.Close()

	// the relay notices the disconnect asynchronously
	online := true
	for i := 0; i < 40 && online; i++ {
		sendMsg(t, alice, msgs.NewDiscover("bob"))
		if resp, ok := readMsg(t, alice).(*msgs.DiscoverResponse); !ok {
			t.Fatal("expected *msgs.DiscoverResponse")
		} else {
			online = resp.Online
		}

		if online {
			time.Sleep(50 * time.Millisecond)
		}
	}

	if online {
		t.Fatal("bob is still online after disconnect")
	}
}

func TestRelayRegistrationReplacement(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()
	bobOld := dialPeer(t, addr)
	defer func() { _ = bobOld.Close() }()
	bobNew := dialPeer(t, addr)
	defer func() { _ = bobNew.Close() }()

	register(t, alice, "alice", "alice-key")
	register(t, bobOld, "bob", "bob-key-old")
	register(t, bobNew, "bob", "bob-key-new")

	if l := server.Presence().Len(); l != 2 {
		t.Fatalf("expected 2 entries, got %d", l)
	}

	sendMsg(t, alice, msgs.NewDiscover("bob"))
	if resp, ok := readMsg(t, alice).(*msgs.DiscoverResponse); !ok {
		t.Fatal("expected *msgs.DiscoverResponse")
	} else if !resp.Online || resp.PublicKey != "bob-key-new" {
		t.Fatalf("newest registration did not win: %v", resp)
	}

	// only the newest connection is routable
	sendMsg(t, alice, msgs.NewOffer("alice", "bob", json.RawMessage(`{"sdp":"X"}`)))
	if offer, ok := readMsg(t, bobNew).(*msgs.Offer); !ok {
		t.Fatal("expected *msgs.Offer")
	} else if offer.From != "alice" {
		t.Fatalf("unexpected sender %s", offer.From)
	}

	// the replaced connection's teardown must not remove the new presence
	_ = bobOld.Close()
	time.Sleep(250 * time.Millisecond)

	sendMsg(t, alice, msgs.NewDiscover("bob"))
	if resp, ok := readMsg(t, alice).(*msgs.DiscoverResponse); !ok {
		t.Fatal("expected *msgs.DiscoverResponse")
	} else if !resp.Online {
		t.Fatal("bob went offline after the stale connection closed")
	}
}

func TestServerStatus(t *testing.T) {
	server, addr := startServer(t)
	defer func() { _ = server.Close() }()

	alice := dialPeer(t, addr)
	defer func() { _ = alice.Close() }()
	register(t, alice, "alice", "alice-key")

	resp, err := http.Get(fmt.Sprintf("http://%s/status", addr))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status struct {
		Online int `json:"online"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Online != 1 {
		t.Fatalf("expected 1 online, got %d", status.Online)
	}
}
