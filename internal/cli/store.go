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

package cli

import (
	"context"
	"database/sql"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/mmuarc/hostap/internal/daemon"
	"github.com/mmuarc/hostap/internal/peerstore"
)

// storeRetryTime bounds how long start waits for the peer database.
var storeRetryTime = 60 * time.Second

// openPeerStore opens the peer database and waits until it answers. The
// caller closes the returned db.
func openPeerStore(ctx context.Context, cfg daemon.StoreConfig) (*sql.DB, *peerstore.Store, error) {
	db, err := peerstore.Open(cfg.PeerDB, cfg.BusyTimeout)
	if err != nil {
		return nil, nil, err
	}

	store := peerstore.New(db)

	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = storeRetryTime

	err = backoff.RetryNotify(
		func() error {
			return store.Ping(ctx)
		},
		backoff.WithContext(retry, ctx),
		func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("Peer database not ready")
		},
	)
	if err != nil {
		db.Close() //nolint:errcheck // we already return a more important error
		return nil, nil, err
	}

	return db, store, nil
}
