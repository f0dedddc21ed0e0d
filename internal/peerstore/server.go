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
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/mmuarc/hostap/internal/noob"
)

var serverNoobColumns = []string{"PeerId", "NoobId", "Noob", "Hoob", "sent_time"}

// ServerStore is the server side view of delivered OOB messages. The
// authentication server reads the Noob of a peer from here.
type ServerStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewServerStore(db *sql.DB) *ServerStore {
	return &ServerStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// ReplaceNoob stores a as the only OOB message of its peer. It reports
// whether an earlier message was replaced.
func (s *ServerStore) ReplaceNoob(ctx context.Context, a *noob.Attempt) (bool, error) {
	countStmt, countArgs, err := s.builder.
		Select("COUNT(*)").
		From(ephemeralNoobTable).
		Where(sq.Eq{"PeerId": a.PeerID}).
		ToSql()
	if err != nil {
		return false, err
	}

	deleteStmt, deleteArgs, err := s.builder.
		Delete(ephemeralNoobTable).
		Where(sq.Eq{"PeerId": a.PeerID}).
		ToSql()
	if err != nil {
		return false, err
	}

	insertStmt, insertArgs, err := s.builder.
		Insert(ephemeralNoobTable).
		Columns(serverNoobColumns...).
		Values(a.PeerID, string(a.NoobID), string(a.Noob), string(a.Hoob), a.SentTime).
		ToSql()
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin transaction", err)
	}

	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var existing int
	if err := tx.QueryRowContext(ctx, countStmt, countArgs...).Scan(&existing); err != nil {
		return false, unavailable("count noobs", err)
	}

	if _, err := tx.ExecContext(ctx, deleteStmt, deleteArgs...); err != nil {
		return false, unavailable("delete noobs", err)
	}

	if _, err := tx.ExecContext(ctx, insertStmt, insertArgs...); err != nil {
		return false, unavailable("insert noob", err)
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable("commit noob", err)
	}

	return existing > 0, nil
}

// Noob returns the OOB message currently stored for peerID.
func (s *ServerStore) Noob(ctx context.Context, peerID string) (*noob.Attempt, error) {
	stmt, args, err := s.builder.
		Select(serverNoobColumns...).
		From(ephemeralNoobTable).
		Where(sq.Eq{"PeerId": peerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	a := &noob.Attempt{}

	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(
		&a.PeerID,
		&a.NoobID,
		&a.Noob,
		&a.Hoob,
		&a.SentTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, unavailable("query noob", err)
	}

	return a, nil
}
