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

package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmuarc/hostap/internal/noob"
)

// Publisher builds the OOB message of an attempt and hands it to its sinks
// whenever the message of a peer changes.
type Publisher struct {
	resolver Resolver
	last     map[string]string
	sinks    []Sink
	mu       sync.Mutex
}

func New(resolver Resolver, sinks ...Sink) *Publisher {
	return &Publisher{
		resolver: resolver,
		sinks:    sinks,
		last:     make(map[string]string),
	}
}

// Message resolves the server of a and returns its OOB message.
func (p *Publisher) Message(ctx context.Context, a *noob.Attempt) (string, error) {
	if a == nil {
		return "", fmt.Errorf("%w: no attempt", ErrMalformedMessage)
	}

	info, err := p.resolver.ServerInfo(ctx, a.Ssid)
	if err != nil {
		return "", err
	}

	return BuildMessage(a, info)
}

// Publish writes the message of a to every sink unless it was already
// published for the peer. A failed write is retried on the next call.
func (p *Publisher) Publish(ctx context.Context, a *noob.Attempt) error {
	message, err := p.Message(ctx, a)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last[a.Key()] == message {
		return nil
	}

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, a, message); err != nil {
			return fmt.Errorf("failed to write OOB message: %w", err)
		}
	}

	p.last[a.Key()] = message

	return nil
}
