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

package peerstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog/log"

	"github.com/mmuarc/hostap/internal/noob"
)

const (
	ephemeralStateTable = "EphemeralState"
	ephemeralNoobTable  = "EphemeralNoob"
)

var peerColumns = []string{"Ssid", "PeerId", "PeerState", "MacInput", "ServerInfo"}

var attemptColumns = []string{"Ssid", "PeerId", "NoobId", "Noob", "Hoob", "sent_time"}

// Store reads peer session state written by the supplicant and appends the
// OOB attempts issued for it.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// New returns a Store backed by db. The caller owns db and closes it.
func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Ping checks that the database can be reached.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}

	return nil
}

// ReadyPeers returns every peer waiting for an OOB message, oldest first.
func (s *Store) ReadyPeers(ctx context.Context) ([]noob.Peer, error) {
	stmt, args, err := s.builder.
		Select(peerColumns...).
		From(ephemeralStateTable).
		Where(sq.Eq{"PeerState": int(noob.PeerStateOOBReady)}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("query ready peers", err)
	}

	defer rows.Close() //nolint:errcheck // ok to ignore this error

	var peers []noob.Peer

	for rows.Next() {
		var peer noob.Peer

		if err := scanPeer(rows, &peer); err != nil {
			return nil, unavailable("scan peer", err)
		}

		peers = append(peers, peer)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("query ready peers", err)
	}

	return peers, nil
}

// Peer returns the session state of a single peer, or ErrNoPeerSelected
// when the peer is unknown.
func (s *Store) Peer(ctx context.Context, ssid, peerID string) (*noob.Peer, error) {
	stmt, args, err := s.builder.
		Select(peerColumns...).
		From(ephemeralStateTable).
		Where(sq.Eq{"Ssid": ssid, "PeerId": peerID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	peer := &noob.Peer{}

	err = scanPeer(s.db.QueryRowContext(ctx, stmt, args...), peer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", noob.ErrNoPeerSelected, ssid, peerID)
	} else if err != nil {
		return nil, unavailable("query peer", err)
	}

	return peer, nil
}

// ServerInfo returns the server metadata recorded for ssid. It fails with
// ErrUnknownServer when no peer of that network carries a usable URL.
func (s *Store) ServerInfo(ctx context.Context, ssid string) (*noob.ServerInfo, error) {
	stmt, args, err := s.builder.
		Select("ServerInfo").
		From(ephemeralStateTable).
		Where(sq.And{sq.Eq{"Ssid": ssid}, sq.NotEq{"ServerInfo": nil}}).
		OrderBy("rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var raw string

	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no server info for %q", noob.ErrUnknownServer, ssid)
	} else if err != nil {
		return nil, unavailable("query server info", err)
	}

	info, err := decodeServerInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", noob.ErrUnknownServer, ssid, err)
	}

	if info.URL == "" {
		return nil, fmt.Errorf("%w: server info for %q has no url", noob.ErrUnknownServer, ssid)
	}

	return info, nil
}

// LatestAttempt returns the current OOB attempt of a peer, or nil when
// none has been issued yet.
func (s *Store) LatestAttempt(ctx context.Context, ssid, peerID string) (*noob.Attempt, error) {
	stmt, args, err := s.builder.
		Select(attemptColumns...).
		From(ephemeralNoobTable).
		Where(sq.Eq{"Ssid": ssid, "PeerId": peerID}).
		OrderBy("sent_time DESC", "rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	attempt := &noob.Attempt{}

	err = scanAttempt(s.db.QueryRowContext(ctx, stmt, args...), attempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, unavailable("query latest attempt", err)
	}

	return attempt, nil
}

// Attempts returns every attempt issued to a peer, newest first.
func (s *Store) Attempts(ctx context.Context, ssid, peerID string) ([]noob.Attempt, error) {
	stmt, args, err := s.builder.
		Select(attemptColumns...).
		From(ephemeralNoobTable).
		Where(sq.Eq{"Ssid": ssid, "PeerId": peerID}).
		OrderBy("sent_time DESC", "rowid DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("query attempts", err)
	}

	defer rows.Close() //nolint:errcheck // ok to ignore this error

	var attempts []noob.Attempt

	for rows.Next() {
		var attempt noob.Attempt

		if err := scanAttempt(rows, &attempt); err != nil {
			return nil, unavailable("scan attempt", err)
		}

		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("query attempts", err)
	}

	return attempts, nil
}

// AppendAttempt persists a. Attempts are only ever inserted, the latest one
// by sent_time is the current one.
func (s *Store) AppendAttempt(ctx context.Context, a *noob.Attempt) error {
	stmt, args, err := s.builder.
		Insert(ephemeralNoobTable).
		Columns(attemptColumns...).
		Values(a.Ssid, a.PeerID, string(a.NoobID), string(a.Noob), string(a.Hoob), a.SentTime).
		ToSql()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}

	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return unavailable("insert attempt", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit attempt", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeer(row scanner, p *noob.Peer) error {
	var macInput, serverInfo sql.NullString

	err := row.Scan(
		&p.Ssid,
		&p.PeerID,
		&p.State,
		&macInput,
		&serverInfo,
	)
	if err != nil {
		return err
	}

	// Undecodable session data is left empty, the fingerprint step
	// reports it as missing for this peer only.
	if macInput.Valid && macInput.String != "" {
		if err := json.Unmarshal([]byte(macInput.String), &p.MacInput); err != nil {
			log.Warn().Err(err).Str("peer_id", p.PeerID).Msg("Cannot decode MacInput")

			p.MacInput = nil
		}
	}

	if serverInfo.Valid && serverInfo.String != "" {
		info, err := decodeServerInfo(serverInfo.String)
		if err != nil {
			log.Warn().Err(err).Str("peer_id", p.PeerID).Msg("Cannot decode ServerInfo")
		} else {
			p.ServerInfo = info
		}
	}

	return nil
}

func scanAttempt(row scanner, a *noob.Attempt) error {
	return row.Scan(
		&a.Ssid,
		&a.PeerID,
		&a.NoobID,
		&a.Noob,
		&a.Hoob,
		&a.SentTime,
	)
}

func decodeServerInfo(raw string) (*noob.ServerInfo, error) {
	info := &noob.ServerInfo{}
	if err := json.Unmarshal([]byte(raw), info); err != nil {
		return nil, fmt.Errorf("decode server info: %w", err)
	}

	return info, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", noob.ErrStoreUnavailable, op, err)
}
