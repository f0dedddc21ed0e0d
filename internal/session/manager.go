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

// Package session decides when a peer gets a new OOB message and drives the
// issue loop while the in-band EAP exchange is still pending.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/mmuarc/hostap/internal/noob"
)

const (
	// DefaultReissueInterval is the age after which an OOB message is
	// replaced by a new one.
	DefaultReissueInterval = 300 * time.Second

	tracerName = "github.com/mmuarc/hostap/internal/session"
)

// Store is the part of the peer state store used by the Manager.
type Store interface {
	ReadyPeers(ctx context.Context) ([]noob.Peer, error)
	LatestAttempt(ctx context.Context, ssid, peerID string) (*noob.Attempt, error)
	AppendAttempt(ctx context.Context, a *noob.Attempt) error
}

// Result is the outcome of one Tick for a single peer.
type Result struct {
	// Attempt is the current attempt of the peer after the tick.
	Attempt *noob.Attempt
	Peer    noob.Peer
	// Reissued is true when Attempt was issued during this tick.
	Reissued bool
}

// Manager selects ready peers and issues OOB attempts for them.
type Manager struct {
	store           Store
	random          io.Reader
	tracer          trace.Tracer
	clock           func() time.Time
	locks           keyedMutex
	stats           managerStats
	reissueInterval time.Duration
}

type ManagerOption func(*Manager)

// NewManager returns a Manager reading and writing session state through
// store.
func NewManager(store Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store:           store,
		random:          rand.Reader,
		clock:           time.Now,
		reissueInterval: DefaultReissueInterval,
		tracer:          tracenoop.NewTracerProvider().Tracer(tracerName),
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// WithClock sets the time source used to stamp and age attempts.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithReissueInterval sets the age after which a new attempt is issued.
func WithReissueInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.reissueInterval = d
		}
	}
}

// WithRandom sets the entropy source for Noob generation.
func WithRandom(r io.Reader) ManagerOption {
	return func(m *Manager) {
		m.random = r
	}
}

func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// SelectReadyPeers returns every peer in the OOB ready state.
func (m *Manager) SelectReadyPeers(ctx context.Context) ([]noob.Peer, error) {
	return m.store.ReadyPeers(ctx)
}

// SelectReadyPeer returns the first peer in the OOB ready state, or nil
// when there is none.
func (m *Manager) SelectReadyPeer(ctx context.Context) (*noob.Peer, error) {
	peers, err := m.store.ReadyPeers(ctx)
	if err != nil {
		return nil, err
	}

	if len(peers) == 0 {
		return nil, nil
	}

	return &peers[0], nil
}

// ShouldReissue reports whether a new attempt is due. Nothing is issued
// after authentication succeeded. Without a previous attempt one is always
// due, otherwise once last is at least the reissue interval old.
func (m *Manager) ShouldReissue(last *noob.Attempt, now time.Time, success bool) bool {
	if success {
		return false
	}

	if last == nil {
		return true
	}

	return now.Sub(time.Unix(last.SentTime, 0)) >= m.reissueInterval
}

// IssueAttempt generates, persists and returns a new attempt for peer.
func (m *Manager) IssueAttempt(ctx context.Context, peer *noob.Peer) (*noob.Attempt, error) {
	if peer == nil {
		return nil, noob.ErrNoPeerSelected
	}

	unlock := m.locks.Lock(peer.Key())
	defer unlock()

	return m.issue(ctx, peer)
}

// Tick runs one step for every ready peer. The latest attempt of a peer is
// kept unless ShouldReissue asks for a new one. Failures of single peers
// are joined into the returned error, results of the other peers are still
// returned.
func (m *Manager) Tick(ctx context.Context, success bool) ([]Result, error) {
	ctx, span := m.tracer.Start(ctx, "session.Tick",
		trace.WithAttributes(attribute.Bool("success", success)))
	defer span.End()

	m.stats.ticks.Add(1)

	peers, err := m.store.ReadyPeers(ctx)
	if err != nil {
		m.stats.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, fmt.Errorf("failed to select ready peers: %w", err)
	}

	span.SetAttributes(attribute.Int("peers", len(peers)))

	results := make([]Result, 0, len(peers))

	var errs []error

	for i := range peers {
		res, err := m.tickPeer(ctx, &peers[i], success)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if res.Attempt != nil {
			results = append(results, res)
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return results, err
	}

	return results, nil
}

func (m *Manager) tickPeer(ctx context.Context, peer *noob.Peer, success bool) (Result, error) {
	unlock := m.locks.Lock(peer.Key())
	defer unlock()

	res := Result{Peer: *peer}

	last, err := m.store.LatestAttempt(ctx, peer.Ssid, peer.PeerID)
	if err != nil {
		m.stats.failures.Add(1)
		return res, fmt.Errorf("failed to load attempt of peer %q: %w", peer.PeerID, err)
	}

	if !m.ShouldReissue(last, m.clock(), success) {
		if last != nil {
			m.stats.reused.Add(1)
		}

		res.Attempt = last

		return res, nil
	}

	attempt, err := m.issue(ctx, peer)
	if err != nil {
		return res, err
	}

	res.Attempt = attempt
	res.Reissued = true

	return res, nil
}

// issue must be called inside the section of peer.
func (m *Manager) issue(ctx context.Context, peer *noob.Peer) (*noob.Attempt, error) {
	ctx, span := m.tracer.Start(ctx, "session.IssueAttempt",
		trace.WithAttributes(
			attribute.String("ssid", peer.Ssid),
			attribute.String("peer_id", peer.PeerID),
		))
	defer span.End()

	attempt, err := m.newAttempt(peer)
	if err == nil {
		err = m.store.AppendAttempt(ctx, attempt)
		if err != nil {
			err = fmt.Errorf("failed to persist attempt of peer %q: %w", peer.PeerID, err)
		}
	}

	if err != nil {
		m.stats.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	m.stats.issued.Add(1)

	log.Debug().
		Str("ssid", attempt.Ssid).
		Str("peer_id", attempt.PeerID).
		Str("noob_id", string(attempt.NoobID)).
		Msg("Issued OOB attempt")

	return attempt, nil
}

func (m *Manager) newAttempt(peer *noob.Peer) (*noob.Attempt, error) {
	if peer.State != noob.PeerStateOOBReady {
		return nil, fmt.Errorf("%w: peer %q is %s", noob.ErrNoPeerSelected, peer.PeerID, peer.State)
	}

	n, err := noob.GenerateNoobFrom(m.random)
	if err != nil {
		return nil, err
	}

	hoob, err := noob.ComputeHoob(peer.MacInput, n)
	if err != nil {
		return nil, fmt.Errorf("peer %q: %w", peer.PeerID, err)
	}

	return &noob.Attempt{
		Ssid:     peer.Ssid,
		PeerID:   peer.PeerID,
		Noob:     n,
		NoobID:   noob.ComputeNoobID(n),
		Hoob:     hoob,
		SentTime: m.clock().Unix(),
	}, nil
}
