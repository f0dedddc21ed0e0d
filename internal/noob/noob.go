// Copyright (c) 2026 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package noob holds the EAP-NOOB out-of-band types shared by the agent
// and the fingerprint engine used to derive Noob, NoobId and Hoob.
package noob

import (
	"errors"
)

var (
	// ErrNoPeerSelected is returned when no peer is currently eligible for
	// OOB generation. Callers treat it as "nothing to do".
	ErrNoPeerSelected = errors.New("no peer in OOB ready state")
	// ErrMissingSessionData is returned when handshake parameters required
	// for the fingerprint are absent.
	ErrMissingSessionData = errors.New("missing session data")
	// ErrUnknownServer is returned when no server metadata can be resolved
	// to publish the OOB message.
	ErrUnknownServer = errors.New("unknown server")
	// ErrStoreUnavailable is returned when the peer state store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("peer state store unavailable")
	ErrInvalidNoob      = errors.New("invalid noob")
)

// PeerState mirrors the EAP-NOOB peer state machine values stored in the
// PeerState column.
type PeerState int

const (
	PeerStateUnregistered PeerState = iota
	PeerStateOOBReady
	PeerStateOOBReceived
	PeerStateReconnecting
	PeerStateRegistered
)

func (s PeerState) String() string {
	switch s {
	case PeerStateUnregistered:
		return "unregistered"
	case PeerStateOOBReady:
		return "oob_ready"
	case PeerStateOOBReceived:
		return "oob_received"
	case PeerStateReconnecting:
		return "reconnecting"
	case PeerStateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// ServerInfo is the server metadata exchanged during the handshake.
// Only URL is required to publish an OOB message.
type ServerInfo struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Peer is the session state of a peer as recorded by the supplicant.
type Peer struct {
	ServerInfo *ServerInfo
	PeerID     string
	Ssid       string
	MacInput   []string
	State      PeerState
}

// Key identifies a peer across the store and the session manager.
func (p *Peer) Key() string {
	return p.Ssid + "/" + p.PeerID
}

// Attempt is a single OOB message issued to a peer. Attempts are never
// modified once persisted.
type Attempt struct {
	Ssid     string `json:"Ssid"`
	PeerID   string `json:"PeerId"`
	Noob     Noob   `json:"Noob"`
	NoobID   NoobID `json:"NoobId"`
	Hoob     Hoob   `json:"Hoob"`
	SentTime int64  `json:"sent_time"`
}

// Key identifies the peer the attempt was issued to.
func (a *Attempt) Key() string {
	return a.Ssid + "/" + a.PeerID
}
