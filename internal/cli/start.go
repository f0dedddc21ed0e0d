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
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmuarc/hostap/internal/daemon"
	"github.com/mmuarc/hostap/internal/peerstore"
	"github.com/mmuarc/hostap/internal/publish"
	"github.com/mmuarc/hostap/internal/session"
	"github.com/mmuarc/hostap/internal/supplicant"
)

const shutdownTimeout = 5 * time.Second

func startCmd(ctx context.Context, g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "start",
		Short:        "Issue OOB messages until EAP authentication succeeds.",
		Example:      "noob-agent start",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			return runAgent(ctx, g, cfg, nil)
		},
	}

	return cmd
}

// runAgent runs the OOB loop and, when enabled, the metrics endpoint until
// the loop returns. auth replaces the wpa_cli check when set.
func runAgent(ctx context.Context, g *globalFlags, cfg *daemon.Config, auth session.Authenticator) error {
	tel, err := setupTelemetry(ctx, cfg.Observability)
	if err != nil {
		return err
	}

	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	db, store, err := openPeerStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	defer db.Close() //nolint:errcheck // ok to ignore this error

	meter := tel.meterProvider.Meter("session")

	manager := session.NewManager(store,
		session.WithReissueInterval(cfg.OOB.ReissueInterval),
		session.WithMetrics(meter),
		session.WithTracer(tel.tracerProvider.Tracer("session")),
	)

	publisher := newPublisher(g, cfg, store, tel)

	if auth == nil {
		auth = supplicant.NewStatusChecker(
			supplicant.WithCLI(cfg.Supplicant.CLI),
			supplicant.WithInterface(cfg.Supplicant.Interface),
		)
	}

	loop := session.NewLoop(manager, publisher, auth,
		session.WithPollInterval(cfg.OOB.PollInterval),
		session.WithLoopMetrics(meter),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		// authentication finished, stop the metrics endpoint as well
		defer cancel()
		return loop.Run(ctx)
	})

	if tel.handler != nil {
		eg.Go(func() error {
			return serveHTTP(ctx, cfg.Observability.Metrics.Bind, tel.handler)
		})
	}

	log.Info().Str("peer_db", cfg.Store.PeerDB).Msg("Service noob-agent started")

	return eg.Wait()
}

func newPublisher(g *globalFlags, cfg *daemon.Config, store *peerstore.Store, tel *telemetry) *publish.Publisher {
	resolver := publish.NewCachedResolver(store,
		publish.WithCacheTTL(cfg.OOB.ServerInfoTTL),
		publish.WithCacheMetrics(tel.meterProvider.Meter("publish")),
	)

	sinks := []publish.Sink{publish.LogSink{}}
	if cfg.OOB.MessageFile != "" {
		sinks = append(sinks, publish.NewFileSink(g.fs, cfg.OOB.MessageFile))
	}

	return publish.New(resolver, sinks...)
}

// serveHTTP serves handler on addr until ctx is done.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		//nolint:errcheck // the listener is closed either way
		server.Shutdown(sctx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
