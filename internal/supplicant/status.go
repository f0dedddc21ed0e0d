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

// Package supplicant reads the state of a running wpa_supplicant through
// wpa_cli.
package supplicant

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	DefaultCLI = "wpa_cli"

	eapStateKey     = "EAP state"
	eapStateSuccess = "SUCCESS"
)

// Runner executes name with args and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	//nolint:gosec // the cli path comes from the agent configuration
	return exec.CommandContext(ctx, name, args...).Output()
}

// StatusChecker reports EAP completion from "wpa_cli status".
type StatusChecker struct {
	run   Runner
	cli   string
	iface string
}

type StatusCheckerOption func(*StatusChecker)

// WithCLI sets the wpa_cli binary.
func WithCLI(path string) StatusCheckerOption {
	return func(s *StatusChecker) {
		if path != "" {
			s.cli = path
		}
	}
}

// WithInterface selects the interface wpa_cli talks to.
func WithInterface(iface string) StatusCheckerOption {
	return func(s *StatusChecker) {
		s.iface = iface
	}
}

func WithRunner(run Runner) StatusCheckerOption {
	return func(s *StatusChecker) {
		s.run = run
	}
}

func NewStatusChecker(options ...StatusCheckerOption) *StatusChecker {
	s := &StatusChecker{
		run: execRunner,
		cli: DefaultCLI,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Status returns the key=value pairs printed by "wpa_cli status".
func (s *StatusChecker) Status(ctx context.Context) (map[string]string, error) {
	var args []string
	if s.iface != "" {
		args = append(args, "-i", s.iface)
	}

	args = append(args, "status")

	out, err := s.run(ctx, s.cli, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s status: %w", s.cli, err)
	}

	return parseStatus(out), nil
}

// Authenticated reports whether the EAP state machine reached SUCCESS.
func (s *StatusChecker) Authenticated(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}

	return status[eapStateKey] == eapStateSuccess, nil
}

func parseStatus(out []byte) map[string]string {
	status := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}

		status[key] = value
	}

	return status
}
