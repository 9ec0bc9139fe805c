// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestUnmarshalInvalidFormat(t *testing.T) {
	for _, data := range []string{"", "{", "[1,2", "\"type\""} {
		if _, err := Unmarshal([]byte(data)); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("input %q: expected ErrInvalidFormat, got %v", data, err)
		}
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	for _, data := range []string{`{"type":"bogus"}`, `{"foo":"bar"}`, `{}`} {
		if _, err := Unmarshal([]byte(data)); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("input %q: expected ErrUnknownType, got %v", data, err)
		}
	}
}

func TestRoundTripOffer(t *testing.T) {
	payload := json.RawMessage(`{"sdp":"X"}`)

	data, err := Marshal(NewOffer("alice", "bob", payload))
	if err != nil {
		t.Fatal(err)
	}

	m, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	offer, ok := m.(*Offer)
	if !ok {
		t.Fatalf("expected *Offer, got %T", m)
	}

	if offer.From != "alice" || offer.To != "bob" {
		t.Fatalf("unexpected parties: %s -> %s", offer.From, offer.To)
	}
	if !bytes.Equal(offer.Offer, payload) {
		t.Fatalf("payload changed: %s", offer.Offer)
	}
}

func TestRoundTripRegister(t *testing.T) {
	data, err := Marshal(NewRegister("alice", "alice-key"))
	if err != nil {
		t.Fatal(err)
	}

	m, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	register, ok := m.(*Register)
	if !ok {
		t.Fatalf("expected *Register, got %T", m)
	}
	if register.UserId != "alice" || register.PublicKey != "alice-key" {
		t.Fatalf("unexpected fields: %v", register)
	}
}

func TestNegotiationImplementations(t *testing.T) {
	payload := json.RawMessage(`{}`)

	for _, m := range []Negotiation{
		NewOffer("a", "b", payload),
		NewAnswer("a", "b", payload),
		NewIceCandidate("a", "b", payload),
	} {
		if m.Recipient() != "b" {
			t.Fatalf("%s: unexpected recipient %s", m.MessageType(), m.Recipient())
		}

		m.SetSender("c")
		data, err := Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		if m2, err := Unmarshal(data); err != nil {
			t.Fatal(err)
		} else if m2.(Negotiation).Recipient() != "b" {
			t.Fatalf("%s: recipient changed after round trip", m.MessageType())
		}
	}
}

func TestDiscoverResponseOmitsPublicKey(t *testing.T) {
	data, err := Marshal(NewDiscoverResponse("bob", false, ""))
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["publicKey"]; ok {
		t.Fatal("offline discover-response must not carry a publicKey field")
	}
}
