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

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mmuarc/hostap/internal/noob"
)

// DefaultPollInterval is how often the loop checks the EAP state.
const DefaultPollInterval = 12 * time.Second

// Authenticator reports whether the in-band EAP exchange has completed.
type Authenticator interface {
	Authenticated(ctx context.Context) (bool, error)
}

// Publisher delivers the current attempt of a peer to the user.
type Publisher interface {
	Publish(ctx context.Context, a *noob.Attempt) error
}

// Loop drives the Manager until EAP authentication succeeds.
type Loop struct {
	manager   *Manager
	publisher Publisher
	auth      Authenticator
	stats     loopStats
	interval  time.Duration
}

type LoopOption func(*Loop)

func NewLoop(manager *Manager, publisher Publisher, auth Authenticator, options ...LoopOption) *Loop {
	l := &Loop{
		manager:   manager,
		publisher: publisher,
		auth:      auth,
		interval:  DefaultPollInterval,
	}

	for _, opt := range options {
		opt(l)
	}

	return l
}

// WithPollInterval sets the delay between two steps.
func WithPollInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// Run steps immediately and then once per poll interval. It returns nil
// once authentication succeeded or ctx is done. Step errors are logged and
// retried on the next tick.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		done, err := l.Step(ctx)
		if err != nil {
			log.Error().Err(err).Msg("OOB step failed")
		}

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step checks the EAP state once and, while it is still pending, issues and
// publishes the current attempt of every ready peer. done is true once
// authentication succeeded.
func (l *Loop) Step(ctx context.Context) (done bool, err error) {
	logger := log.With().Str("tick", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx)

	l.stats.authChecks.Add(1)

	success, err := l.auth.Authenticated(ctx)
	if err != nil {
		l.stats.authFailures.Add(1)
		logger.Warn().Err(err).Msg("Cannot read EAP state, assuming pending")

		success = false
	}

	if success {
		logger.Info().Msg("EAP authentication succeeded")
		return true, nil
	}

	results, tickErr := l.manager.Tick(ctx, false)

	if len(results) == 0 && tickErr == nil {
		logger.Debug().Msg("No peer waiting for an OOB message")
		return false, nil
	}

	errs := []error{tickErr}

	for _, res := range results {
		peerLogger := logger.With().
			Str("ssid", res.Peer.Ssid).
			Str("peer_id", res.Peer.PeerID).
			Str("noob_id", string(res.Attempt.NoobID)).
			Bool("reissued", res.Reissued).
			Logger()

		if err := l.publisher.Publish(ctx, res.Attempt); err != nil {
			l.stats.publishErrors.Add(1)
			errs = append(errs, fmt.Errorf("failed to publish attempt of peer %q: %w", res.Peer.PeerID, err))

			continue
		}

		peerLogger.Debug().Msg("Published OOB message")
	}

	return false, errors.Join(errs...)
}
