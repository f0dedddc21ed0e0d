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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuarc/hostap/internal/noob"
)

func withTestDatabase(t *testing.T, migrate func(context.Context, *sql.DB) error) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), filepath.Base(t.Name())+".db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db, err := Open(f.Name(), 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, migrate(context.Background(), db))

	return db
}

func exec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()

	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err)
	}
}

func TestMigratePeerSchemaIsIdempotent(t *testing.T) {
	db := withTestDatabase(t, MigratePeerSchema)

	require.NoError(t, MigratePeerSchema(context.Background(), db))

	exec(t, db, `INSERT INTO EphemeralState (Ssid, PeerId, PeerState) VALUES ('noob', 'P1', 1);`)
}

func TestReadyPeers(t *testing.T) {
	testcases := map[string]struct {
		in  []string
		out []noob.Peer
	}{
		"single ready peer": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, PeerState, MacInput, ServerInfo)
				VALUES ('noob', 'P1', 1, '["v1","EAP-NOOB","nonceA"]', '{"Name":"srv","Url":"https://noob.example.com/sendoob"}');`,
			},
			out: []noob.Peer{
				{
					Ssid:     "noob",
					PeerID:   "P1",
					State:    noob.PeerStateOOBReady,
					MacInput: []string{"v1", "EAP-NOOB", "nonceA"},
					ServerInfo: &noob.ServerInfo{
						Name: "srv",
						URL:  "https://noob.example.com/sendoob",
					},
				},
			},
		},
		"peers in other states are skipped": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, PeerState) VALUES ('noob', 'P1', 0);`,
				`INSERT INTO EphemeralState (Ssid, PeerId, PeerState) VALUES ('noob', 'P2', 4);`,
				`INSERT INTO EphemeralState (Ssid, PeerId, PeerState, MacInput) VALUES ('noob', 'P3', 1, '["a","b"]');`,
			},
			out: []noob.Peer{
				{
					Ssid:     "noob",
					PeerID:   "P3",
					State:    noob.PeerStateOOBReady,
					MacInput: []string{"a", "b"},
				},
			},
		},
		"undecodable mac input": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, PeerState, MacInput) VALUES ('noob', 'P1', 1, 'not json');`,
			},
			out: []noob.Peer{
				{
					Ssid:   "noob",
					PeerID: "P1",
					State:  noob.PeerStateOOBReady,
				},
			},
		},
		"no peers": {},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			db := withTestDatabase(t, MigratePeerSchema)
			exec(t, db, tc.in...)

			peers, err := New(db).ReadyPeers(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.out, peers)
		})
	}
}

func TestPeer(t *testing.T) {
	db := withTestDatabase(t, MigratePeerSchema)
	exec(t, db, `INSERT INTO EphemeralState (Ssid, PeerId, PeerState) VALUES ('noob', 'P1', 2);`)

	store := New(db)

	peer, err := store.Peer(context.Background(), "noob", "P1")
	require.NoError(t, err)
	assert.Equal(t, noob.PeerStateOOBReceived, peer.State)

	_, err = store.Peer(context.Background(), "noob", "P2")
	assert.ErrorIs(t, err, noob.ErrNoPeerSelected)
}

func TestServerInfo(t *testing.T) {
	testcases := map[string]struct {
		in  []string
		out *noob.ServerInfo
		err error
	}{
		"lowercase keys": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('noob', 'P1', '{"name":"srv","url":"https://a.example"}');`,
			},
			out: &noob.ServerInfo{Name: "srv", URL: "https://a.example"},
		},
		"latest row wins": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('noob', 'P1', '{"Url":"https://old.example"}');`,
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('noob', 'P2', '{"Url":"https://new.example"}');`,
			},
			out: &noob.ServerInfo{URL: "https://new.example"},
		},
		"other network": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('other', 'P1', '{"Url":"https://a.example"}');`,
			},
			err: noob.ErrUnknownServer,
		},
		"missing url": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('noob', 'P1', '{"Name":"srv"}');`,
			},
			err: noob.ErrUnknownServer,
		},
		"invalid json": {
			in: []string{
				`INSERT INTO EphemeralState (Ssid, PeerId, ServerInfo) VALUES ('noob', 'P1', '{');`,
			},
			err: noob.ErrUnknownServer,
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			db := withTestDatabase(t, MigratePeerSchema)
			exec(t, db, tc.in...)

			info, err := New(db).ServerInfo(context.Background(), "noob")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.out, info)
		})
	}
}

func TestAppendAndLatestAttempt(t *testing.T) {
	db := withTestDatabase(t, MigratePeerSchema)
	store := New(db)
	ctx := context.Background()

	latest, err := store.LatestAttempt(ctx, "noob", "P1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	first := &noob.Attempt{
		Ssid:     "noob",
		PeerID:   "P1",
		Noob:     "AAECAwQFBgcICQoLDA0ODw",
		NoobID:   "_eLVoNvu8itthIXtO6Gojg",
		Hoob:     "_n3c-ecsWGlrQTfpqQ82JQ",
		SentTime: 1000,
	}
	second := &noob.Attempt{
		Ssid:     "noob",
		PeerID:   "P1",
		Noob:     "AQEBAQEBAQEBAQEBAQEBAQ",
		NoobID:   "id2",
		Hoob:     "hoob2",
		SentTime: 1301,
	}
	other := &noob.Attempt{
		Ssid:     "noob",
		PeerID:   "P2",
		Noob:     "AgICAgICAgICAgICAgICAg",
		NoobID:   "id3",
		Hoob:     "hoob3",
		SentTime: 2000,
	}

	require.NoError(t, store.AppendAttempt(ctx, first))
	require.NoError(t, store.AppendAttempt(ctx, second))
	require.NoError(t, store.AppendAttempt(ctx, other))

	latest, err = store.LatestAttempt(ctx, "noob", "P1")
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	attempts, err := store.Attempts(ctx, "noob", "P1")
	require.NoError(t, err)
	assert.Equal(t, []noob.Attempt{*second, *first}, attempts)

	// (Ssid, PeerId, NoobId) keys the attempt log
	err = store.AppendAttempt(ctx, first)
	assert.ErrorIs(t, err, noob.ErrStoreUnavailable)
}

func TestStoreUnavailable(t *testing.T) {
	db := withTestDatabase(t, MigratePeerSchema)
	store := New(db)

	require.NoError(t, db.Close())

	ctx := context.Background()

	assert.ErrorIs(t, store.Ping(ctx), noob.ErrStoreUnavailable)

	_, err := store.ReadyPeers(ctx)
	assert.ErrorIs(t, err, noob.ErrStoreUnavailable)

	_, err = store.LatestAttempt(ctx, "noob", "P1")
	assert.ErrorIs(t, err, noob.ErrStoreUnavailable)

	err = store.AppendAttempt(ctx, &noob.Attempt{Ssid: "noob", PeerID: "P1"})
	assert.ErrorIs(t, err, noob.ErrStoreUnavailable)
}

func TestReplaceNoob(t *testing.T) {
	db := withTestDatabase(t, MigrateServerSchema)
	store := NewServerStore(db)
	ctx := context.Background()

	missing, err := store.Noob(ctx, "P1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := &noob.Attempt{PeerID: "P1", Noob: "n1", NoobID: "i1", Hoob: "h1", SentTime: 10}
	second := &noob.Attempt{PeerID: "P1", Noob: "n2", NoobID: "i2", Hoob: "h2", SentTime: 20}

	replaced, err := store.ReplaceNoob(ctx, first)
	require.NoError(t, err)
	assert.False(t, replaced)

	replaced, err = store.ReplaceNoob(ctx, second)
	require.NoError(t, err)
	assert.True(t, replaced)

	current, err := store.Noob(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, second, current)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM EphemeralNoob;").Scan(&count))
	assert.Equal(t, 1, count)
}
