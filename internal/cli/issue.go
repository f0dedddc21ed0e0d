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
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mmuarc/hostap/internal/noob"
	"github.com/mmuarc/hostap/internal/publish"
	"github.com/mmuarc/hostap/internal/session"
)

func issueCmd(ctx context.Context, g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Print the current OOB message of every ready peer.",
		Long: "Print the current OOB message of every ready peer. A new message is " +
			"issued when none exists or the current one is due for reissue.",
		Example:      "noob-agent issue --force",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			db, store, err := openPeerStore(ctx, cfg.Store)
			if err != nil {
				return err
			}

			defer db.Close() //nolint:errcheck // ok to ignore this error

			manager := session.NewManager(store, session.WithReissueInterval(cfg.OOB.ReissueInterval))
			publisher := publish.New(store)

			var (
				results []session.Result
				errs    []error
			)

			if force {
				peers, err := manager.SelectReadyPeers(ctx)
				if err != nil {
					return err
				}

				for i := range peers {
					a, err := manager.IssueAttempt(ctx, &peers[i])
					if err != nil {
						errs = append(errs, err)
						continue
					}

					results = append(results, session.Result{Peer: peers[i], Attempt: a, Reissued: true})
				}
			} else {
				results, err = manager.Tick(ctx, false)
				if err != nil {
					errs = append(errs, err)
				}
			}

			if len(results) == 0 && len(errs) == 0 {
				return noob.ErrNoPeerSelected
			}

			for _, res := range results {
				message, err := publisher.Message(ctx, res.Attempt)
				if err != nil {
					errs = append(errs, fmt.Errorf("peer %q: %w", res.Peer.PeerID, err))
					continue
				}

				log.Debug().Str("peer_id", res.Peer.PeerID).Bool("reissued", res.Reissued).Send()

				fmt.Fprintln(cmd.OutOrStdout(), message)
			}

			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false,
		"Issue a new message even if the current one is still valid")

	return cmd
}
