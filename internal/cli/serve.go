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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mmuarc/hostap/internal/peerstore"
	"github.com/mmuarc/hostap/internal/receiver"
)

func serveCmd(ctx context.Context, g *globalFlags) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the server side end point OOB messages are delivered to.",
		Example:      "noob-agent serve --bind 0.0.0.0:3000",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			if bind == "" {
				bind = cfg.Server.Bind
			}

			db, err := peerstore.Open(cfg.Server.DB, cfg.Store.BusyTimeout)
			if err != nil {
				return err
			}

			defer db.Close() //nolint:errcheck // ok to ignore this error

			// the server database belongs to this process
			if err := peerstore.MigrateServerSchema(ctx, db); err != nil {
				return err
			}

			api := receiver.NewAPI(peerstore.NewServerStore(db))

			log.Info().Str("bind", bind).Str("server_db", cfg.Server.DB).Msg("OOB receiver started")

			return serveHTTP(ctx, bind, api.Handler())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, overrides server.bind")

	return cmd
}
