// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Message is one of the protocol messages enumerated in this package.
// Each implementation carries its type tag in a "type" JSON field.
type Message interface {
	// MessageType is the "type" tag identifying this message on the wire.
	MessageType() string
}

// Negotiation is a Message relayed verbatim between exactly two peers:
// Offer, Answer or IceCandidate. The relay stamps the sender's registered
// identifier into the "from" field, so a peer cannot spoof its origin.
type Negotiation interface {
	Message

	// Recipient is the registered identifier this message shall be routed to.
	Recipient() string

	// SetSender overwrites the "from" field with the sender's identifier.
	SetSender(userId string)

	// Validate checks the required fields.
	Validate() error
}

const (
	TypeRegister         = "register"
	TypeRegistered       = "registered"
	TypeDiscover         = "discover"
	TypeDiscoverResponse = "discover-response"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeIceCandidate     = "ice-candidate"
	TypeError            = "error"
)

// Register binds the sending connection to an identifier and advertises its
// public key. Sent client to relay.
type Register struct {
	Type      string `json:"type"`
	UserId    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

func NewRegister(userId, publicKey string) *Register {
	return &Register{Type: TypeRegister, UserId: userId, PublicKey: publicKey}
}

func (m *Register) MessageType() string { return TypeRegister }

// Validate checks the required fields. The returned error enumerates each
// missing field; the wire response is always the generic contract string.
func (m *Register) Validate() (errs error) {
	if m.UserId == "" {
		errs = multierror.Append(errs, fmt.Errorf("register misses userId"))
	}
	if m.PublicKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("register misses publicKey"))
	}
	return
}

// Registered acknowledges a Register. Sent relay to client.
type Registered struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	UserId  string `json:"userId"`
}

func NewRegistered(userId string) *Registered {
	return &Registered{Type: TypeRegistered, Success: true, UserId: userId}
}

func (m *Registered) MessageType() string { return TypeRegistered }

// Discover asks whether an identifier is currently registered. Sent client
// to relay.
type Discover struct {
	Type   string `json:"type"`
	UserId string `json:"userId"`
}

func NewDiscover(userId string) *Discover {
	return &Discover{Type: TypeDiscover, UserId: userId}
}

func (m *Discover) MessageType() string { return TypeDiscover }

func (m *Discover) Validate() (errs error) {
	if m.UserId == "" {
		errs = multierror.Append(errs, fmt.Errorf("discover misses userId"))
	}
	return
}

// DiscoverResponse answers a Discover. PublicKey is only present for an
// online identifier.
type DiscoverResponse struct {
	Type      string `json:"type"`
	UserId    string `json:"userId"`
	Online    bool   `json:"online"`
	PublicKey string `json:"publicKey,omitempty"`
}

func NewDiscoverResponse(userId string, online bool, publicKey string) *DiscoverResponse {
	return &DiscoverResponse{Type: TypeDiscoverResponse, UserId: userId, Online: online, PublicKey: publicKey}
}

func (m *DiscoverResponse) MessageType() string { return TypeDiscoverResponse }

// Offer starts a direct channel negotiation. The payload is opaque to the
// relay.
type Offer struct {
	Type  string          `json:"type"`
	From  string          `json:"from"`
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

func NewOffer(from, to string, payload json.RawMessage) *Offer {
	return &Offer{Type: TypeOffer, From: from, To: to, Offer: payload}
}

func (m *Offer) MessageType() string { return TypeOffer }
func (m *Offer) Recipient() string { return m.To }
func (m *Offer) SetSender(userId string) { m.From = userId }

func (m *Offer) Validate() (errs error) {
	if m.To == "" {
		errs = multierror.Append(errs, fmt.Errorf("offer misses to"))
	}
	if len(m.Offer) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("offer misses offer payload"))
	}
	return
}

// Answer replies to an Offer. The payload is opaque to the relay.
type Answer struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

func NewAnswer(from, to string, payload json.RawMessage) *Answer {
	return &Answer{Type: TypeAnswer, From: from, To: to, Answer: payload}
}

func (m *Answer) MessageType() string { return TypeAnswer }
func (m *Answer) Recipient() string { return m.To }
func (m *Answer) SetSender(userId string) { m.From = userId }

func (m *Answer) Validate() (errs error) {
	if m.To == "" {
		errs = multierror.Append(errs, fmt.Errorf("answer misses to"))
	}
	if len(m.Answer) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("answer misses answer payload"))
	}
	return
}

// IceCandidate carries one transport candidate of an ongoing negotiation.
// The payload is opaque to the relay.
type IceCandidate struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

func NewIceCandidate(from, to string, payload json.RawMessage) *IceCandidate {
	return &IceCandidate{Type: TypeIceCandidate, From: from, To: to, Candidate: payload}
}

func (m *IceCandidate) MessageType() string { return TypeIceCandidate }
func (m *IceCandidate) Recipient() string { return m.To }
func (m *IceCandidate) SetSender(userId string) { m.From = userId }

func (m *IceCandidate) Validate() (errs error) {
	if m.To == "" {
		errs = multierror.Append(errs, fmt.Errorf("ice-candidate misses to"))
	}
	if len(m.Candidate) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("ice-candidate misses candidate payload"))
	}
	return
}

// Error reports a protocol or routing failure back to the sender. The
// connection stays open; every Error is recoverable.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) *Error {
	return &Error{Type: TypeError, Message: message}
}

func (m *Error) MessageType() string { return TypeError }
