// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrProtocolViolation is returned by ParseAction for inbound messages
// that are not well-formed actions.
var ErrProtocolViolation = errors.New("session: protocol violation")

// Action is a typed message to or from a client. Payload is opaque to
// the relay; actions parsed from the wire carry it as json.RawMessage.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ParseAction decodes one inbound text message. Both keys must be
// present and type must be a non-empty string; payload may be any JSON value,
// including null.
func ParseAction(data []byte) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if fields == nil {
		return Action{}, fmt.Errorf("%w: not an object", ErrProtocolViolation)
	}
	rawType, ok := fields["type"]
	if !ok {
		return Action{}, fmt.Errorf("%w: missing type", ErrProtocolViolation)
	}
	payload, ok := fields["payload"]
	if !ok {
		return Action{}, fmt.Errorf("%w: missing payload", ErrProtocolViolation)
	}
	var actionType *string
	if err := json.Unmarshal(rawType, &actionType); err != nil || actionType == nil {
		return Action{}, fmt.Errorf("%w: type is not a string", ErrProtocolViolation)
	}
	if *actionType == "" {
		return Action{}, fmt.Errorf("%w: empty type", ErrProtocolViolation)
	}
	return Action{Type: *actionType, Payload: payload}, nil
}
