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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mmuarc/hostap/internal/daemon"
	"github.com/mmuarc/hostap/internal/peerstore"
	"github.com/mmuarc/hostap/internal/session"
	"github.com/mmuarc/hostap/internal/supplicant"
)

func statusCmd(ctx context.Context, g *globalFlags) *cobra.Command {
	var showEAP bool

	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show peers waiting for an OOB message.",
		Example:      "noob-agent status --eap",
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

			if showEAP {
				checker := supplicant.NewStatusChecker(
					supplicant.WithCLI(cfg.Supplicant.CLI),
					supplicant.WithInterface(cfg.Supplicant.Interface),
				)

				status, err := checker.Status(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "EAP state: %s\n", status["EAP state"])
			}

			return writeStatus(ctx, cmd.OutOrStdout(), cfg, store, time.Now())
		},
	}

	cmd.Flags().BoolVar(&showEAP, "eap", false, "Also query the EAP state through wpa_cli")

	return cmd
}

func writeStatus(ctx context.Context, out io.Writer, cfg *daemon.Config, store *peerstore.Store, now time.Time) error {
	manager := session.NewManager(store, session.WithReissueInterval(cfg.OOB.ReissueInterval))

	peers, err := manager.SelectReadyPeers(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "SSID\tPEER\tNOOB ID\tISSUED\tREISSUE")

	for _, peer := range peers {
		last, err := store.LatestAttempt(ctx, peer.Ssid, peer.PeerID)
		if err != nil {
			return err
		}

		if last == nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\tdue\n", peer.Ssid, peer.PeerID)
			continue
		}

		sent := time.Unix(last.SentTime, 0)

		reissue := "due"
		if !manager.ShouldReissue(last, now, false) {
			reissue = humanize.RelTime(sent.Add(cfg.OOB.ReissueInterval), now, "ago", "from now")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			peer.Ssid, peer.PeerID, last.NoobID, humanize.RelTime(sent, now, "ago", "from now"), reissue)
	}

	return w.Flush()
}
