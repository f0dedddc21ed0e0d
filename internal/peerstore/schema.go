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
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	// sqlite3 driver used for both the peer and the server database
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const (
	peerMigrationsDir   = "migrations/peer"
	serverMigrationsDir = "migrations/server"

	// DefaultBusyTimeout is how long a statement waits for the supplicant
	// to release its lock on the database file.
	DefaultBusyTimeout = 5 * time.Second
)

//go:embed migrations
var migrationsFS embed.FS

// Open opens the SQLite database at path. Transactions take the write lock
// up front, because the supplicant writes to the same file.
func Open(path string, busyTimeout time.Duration) (*sql.DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	params.Set("_txlock", "immediate")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	return db, nil
}

// MigratePeerSchema creates the EphemeralState and EphemeralNoob tables
// when they are missing. The agent never calls this at start, the schema
// belongs to the supplicant.
func MigratePeerSchema(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, peerMigrationsDir)
}

// MigrateServerSchema creates the server side EphemeralNoob table.
func MigrateServerSchema(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, serverMigrationsDir)
}

func migrate(ctx context.Context, db *sql.DB, dir string) error {
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed setting up migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed applying migrations: %w", err)
	}

	return nil
}
