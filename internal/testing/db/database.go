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

package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmuarc/hostap/internal/peerstore"
)

// WithPeerDatabase returns a temporary peer database with the supplicant
// schema applied. It is closed when the test ends.
func WithPeerDatabase(t testing.TB) *sql.DB {
	return withTestDatabase(t, peerstore.MigratePeerSchema)
}

// WithServerDatabase returns a temporary server database.
func WithServerDatabase(t testing.TB) *sql.DB {
	return withTestDatabase(t, peerstore.MigrateServerSchema)
}

// InsertPeer adds a row to EphemeralState.
func InsertPeer(t testing.TB, db *sql.DB, ssid, peerID string, state int, macInput, serverInfo string) {
	t.Helper()

	_, err := db.ExecContext(context.Background(),
		"INSERT INTO EphemeralState (Ssid, PeerId, PeerState, MacInput, ServerInfo) VALUES (?, ?, ?, ?, ?);",
		ssid, peerID, state, macInput, serverInfo,
	)
	require.NoError(t, err)
}

// Path returns a fresh database file location inside the test's temp dir.
func Path(t testing.TB) string {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), filepath.Base(t.Name())+".db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	return f.Name()
}

func withTestDatabase(t testing.TB, migrate func(context.Context, *sql.DB) error) *sql.DB {
	t.Helper()

	db, err := peerstore.Open(Path(t), 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test teardown
	})

	require.NoError(t, migrate(context.Background(), db))

	return db
}
