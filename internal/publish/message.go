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

// Package publish turns OOB attempts into the URL handed to the user and
// delivers it to the configured sinks.
package publish

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmuarc/hostap/internal/noob"
)

var ErrMalformedMessage = errors.New("malformed OOB message")

// BuildMessage returns info.URL with the base64url encoded JSON form of a
// appended as a single path segment.
func BuildMessage(a *noob.Attempt, info *noob.ServerInfo) (string, error) {
	if a == nil {
		return "", fmt.Errorf("%w: no attempt", ErrMalformedMessage)
	}

	if info == nil || info.URL == "" {
		return "", fmt.Errorf("%w: no server url", noob.ErrUnknownServer)
	}

	base, err := url.Parse(info.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", noob.ErrUnknownServer, err)
	}

	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute url", noob.ErrUnknownServer, info.URL)
	}

	data, err := noob.MarshalCompact(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode attempt: %w", err)
	}

	return base.JoinPath(base64.RawURLEncoding.EncodeToString(data)).String(), nil
}

// DecodeMessage parses the path segment produced by BuildMessage. Both
// base64 alphabets are accepted, with or without padding.
func DecodeMessage(segment string) (*noob.Attempt, error) {
	segment = strings.TrimRight(segment, "=")
	if segment == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedMessage)
	}

	enc := base64.RawURLEncoding
	if strings.ContainsAny(segment, "+/") {
		enc = base64.RawStdEncoding
	}

	data, err := enc.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	a := &noob.Attempt{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if a.PeerID == "" {
		return nil, fmt.Errorf("%w: missing PeerId", ErrMalformedMessage)
	}

	if err := a.Noob.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return a, nil
}
