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

// Package cli implements the noob-agent commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mmuarc/hostap/internal/daemon"
)

const configEnv = "NOOB_AGENT_CONFIG"

// globalFlags are shared by every command.
type globalFlags struct {
	fs         afero.Fs
	configFile string
	logLevel   string
}

func (g *globalFlags) loadConfig() (*daemon.Config, error) {
	cfg, err := daemon.LoadConfig(g.fs, g.configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	// --log-level wins over the config file
	if g.logLevel == "" && cfg.Observability.Logging.Level != "" {
		if err := setLogLevel(string(cfg.Observability.Logging.Level)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func setLogLevel(level string) error {
	ll, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}

	if ll != zerolog.NoLevel {
		zerolog.SetGlobalLevel(ll)
	}

	return nil
}

// RootCmd returns the noob-agent command tree. Files are accessed through
// fs.
func RootCmd(ctx context.Context, fs afero.Fs) *cobra.Command {
	g := &globalFlags{fs: fs}

	cmd := &cobra.Command{
		Use:   "noob-agent",
		Short: "EAP-NOOB agent - out-of-band messages for your peers",
		// Silence because we want to use our logger instead
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.logLevel == "" {
				return nil
			}

			return setLogLevel(g.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configFile := os.Getenv(configEnv)
	if configFile == "" {
		configFile = daemon.DefaultConfigFile
	}

	cmd.PersistentFlags().BoolP("help", "h", false,
		"Help information about a command")
	cmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", configFile,
		"Path to the agent configuration (env "+configEnv+")")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(initCmd(ctx, g))
	cmd.AddCommand(startCmd(ctx, g))
	cmd.AddCommand(issueCmd(ctx, g))
	cmd.AddCommand(statusCmd(ctx, g))
	cmd.AddCommand(serveCmd(ctx, g))

	cmd.InitDefaultHelpCmd()

	return cmd
}
