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
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mmuarc/hostap/internal/daemon"
	"github.com/mmuarc/hostap/internal/peerstore"
)

func initCmd(ctx context.Context, g *globalFlags) *cobra.Command {
	var (
		opts       daemon.ConfigOptions
		force      bool
		skipSchema bool
	)

	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Write the agent configuration and prepare the databases.",
		Example:      "noob-agent init --state-dir /var/lib/noob --interface wlan0",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := afero.Exists(g.fs, g.configFile)
			if err != nil {
				return err
			}

			if exists && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", g.configFile)
			}

			cfg, err := daemon.GenerateConfig(g.fs, g.configFile, opts)
			if err != nil {
				return err
			}

			log.Info().Str("path", g.configFile).Msg("Configuration written")

			if skipSchema {
				return nil
			}

			if err := migrateDatabase(ctx, cfg.Store.PeerDB, cfg.Store.BusyTimeout,
				peerstore.MigratePeerSchema); err != nil {
				return fmt.Errorf("peer database: %w", err)
			}

			if err := migrateDatabase(ctx, cfg.Server.DB, cfg.Store.BusyTimeout,
				peerstore.MigrateServerSchema); err != nil {
				return fmt.Errorf("server database: %w", err)
			}

			log.Info().
				Str("peer_db", cfg.Store.PeerDB).
				Str("server_db", cfg.Server.DB).
				Msg("Database schema ready")

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.StateDir, "state-dir", daemon.DefaultStateDir,
		"Directory holding the peer and server databases")
	cmd.Flags().StringVarP(&opts.Interface, "interface", "i", "",
		"Wireless interface wpa_cli should talk to")
	cmd.Flags().StringVar(&opts.CLI, "wpa-cli", "wpa_cli",
		"Path to the wpa_cli binary")
	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"Overwrite an existing configuration")
	cmd.Flags().BoolVar(&skipSchema, "skip-schema", false,
		"Do not create missing database tables")

	return cmd
}

func migrateDatabase(ctx context.Context, path string, busyTimeout time.Duration,
	migrate func(context.Context, *sql.DB) error) error {
	db, err := peerstore.Open(path, busyTimeout)
	if err != nil {
		return err
	}

	defer db.Close() //nolint:errcheck // ok to ignore this error

	return migrate(ctx, db)
}
