// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/json"
	"errors"
	"reflect"
)

var (
	// ErrInvalidFormat is returned for input which is not parseable JSON.
	ErrInvalidFormat = errors.New("invalid message format")

	// ErrUnknownType is returned for a well-formed message whose "type" tag
	// is not part of the protocol.
	ErrUnknownType = errors.New("unknown message type")
)

var typeMapping = map[string]reflect.Type{
	TypeRegister:         reflect.TypeOf(Register{}),
	TypeRegistered:       reflect.TypeOf(Registered{}),
	TypeDiscover:         reflect.TypeOf(Discover{}),
	TypeDiscoverResponse: reflect.TypeOf(DiscoverResponse{}),
	TypeOffer:            reflect.TypeOf(Offer{}),
	TypeAnswer:           reflect.TypeOf(Answer{}),
	TypeIceCandidate:     reflect.TypeOf(IceCandidate{}),
	TypeError:            reflect.TypeOf(Error{}),
}

// Marshal serializes a Message to its JSON wire form.
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal parses a Message based on its "type" tag. An undecodable input
// yields ErrInvalidFormat, an unenumerated tag yields ErrUnknownType.
func Unmarshal(data []byte) (Message, error) {
	var envelope struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, ErrInvalidFormat
	}

	t, ok := typeMapping[envelope.Type]
	if !ok {
		return nil, ErrUnknownType
	}

	m := reflect.New(t).Interface().(Message)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, ErrInvalidFormat
	}

	return m, nil
}
