// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func TestRegisterValidate(t *testing.T) {
	if err := NewRegister("alice", "alice-key").Validate(); err != nil {
		t.Fatal(err)
	}

	if err := NewRegister("", "").Validate(); err == nil {
		t.Fatal("expected validation errors")
	} else if merr, ok := err.(*multierror.Error); !ok {
		t.Fatalf("expected *multierror.Error, got %T", err)
	} else if l := len(merr.WrappedErrors()); l != 2 {
		t.Fatalf("expected 2 errors, got %d", l)
	}

	if err := NewRegister("alice", "").Validate(); err == nil {
		t.Fatal("expected validation error for missing publicKey")
	}
}

func TestDiscoverValidate(t *testing.T) {
	if err := NewDiscover("bob").Validate(); err != nil {
		t.Fatal(err)
	}
	if err := NewDiscover("").Validate(); err == nil {
		t.Fatal("expected validation error for missing userId")
	}
}

func TestNegotiationValidate(t *testing.T) {
	payload := json.RawMessage(`{"sdp":"X"}`)

	for _, m := range []Negotiation{
		NewOffer("a", "b", payload),
		NewAnswer("a", "b", payload),
		NewIceCandidate("a", "b", payload),
	} {
		if err := m.Validate(); err != nil {
			t.Fatalf("%s: %v", m.MessageType(), err)
		}
	}

	for _, m := range []Negotiation{
		NewOffer("a", "", payload),
		NewAnswer("a", "b", nil),
		NewIceCandidate("a", "", nil),
	} {
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", m.MessageType())
		}
	}
}
