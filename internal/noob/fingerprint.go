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

package noob

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// NoobLen is the length of the raw nonce in bytes.
	NoobLen = 16
	// FingerprintLen is the number of SHA-256 digest bytes kept for NoobId
	// and Hoob.
	FingerprintLen = 16
	// EncodedLen is the length of a 16 byte value in unpadded base64url.
	EncodedLen = 22

	noobIDPrefix = "NoobId"
)

var encoding = base64.RawURLEncoding

// Noob is the out-of-band nonce in unpadded base64url form.
type Noob string

// NoobID identifies an OOB message. It is derived from the Noob.
type NoobID string

// Hoob is the fingerprint binding the handshake parameters to a Noob.
type Hoob string

// Bytes returns the raw nonce.
func (n Noob) Bytes() ([]byte, error) {
	raw, err := encoding.DecodeString(string(n))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNoob, err)
	}

	if len(raw) != NoobLen {
		return nil, fmt.Errorf("%w: decoded to %d bytes", ErrInvalidNoob, len(raw))
	}

	return raw, nil
}

// Validate checks that n is a well formed 16 byte nonce.
func (n Noob) Validate() error {
	_, err := n.Bytes()
	return err
}

// GenerateNoob draws a fresh nonce from crypto/rand.
func GenerateNoob() (Noob, error) {
	return GenerateNoobFrom(rand.Reader)
}

// GenerateNoobFrom draws a nonce from r. r must be a cryptographically
// secure source outside of tests.
func GenerateNoobFrom(r io.Reader) (Noob, error) {
	raw := make([]byte, NoobLen)

	if _, err := io.ReadFull(r, raw); err != nil {
		return "", fmt.Errorf("failed to read random noob: %w", err)
	}

	return Noob(encoding.EncodeToString(raw)), nil
}

// ComputeNoobID returns base64url(SHA-256("NoobId" || n)[0:16]).
func ComputeNoobID(n Noob) NoobID {
	return NoobID(fingerprint([]byte(noobIDPrefix + string(n))))
}

// ComputeHoob returns the fingerprint of macInput with its last element
// replaced by n. The serialization is compact JSON and must match the
// peer's computation byte for byte. macInput is not modified.
func ComputeHoob(macInput []string, n Noob) (Hoob, error) {
	if len(macInput) == 0 {
		return "", fmt.Errorf("%w: empty MacInput", ErrMissingSessionData)
	}

	input := make([]string, len(macInput))
	copy(input, macInput)
	input[len(input)-1] = string(n)

	data, err := MarshalCompact(input)
	if err != nil {
		return "", fmt.Errorf("failed to serialize MacInput: %w", err)
	}

	return Hoob(fingerprint(data)), nil
}

// MarshalCompact encodes v without whitespace and without the HTML escaping
// encoding/json applies by default.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return encoding.EncodeToString(sum[:FingerprintLen])
}
