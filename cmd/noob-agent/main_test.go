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

package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLogger(t *testing.T) {
	testcases := map[string]struct {
		in  string
		out zerolog.Level
	}{
		"debug": {
			in:  "debug",
			out: zerolog.DebugLevel,
		},
		"warn": {
			in:  "warn",
			out: zerolog.WarnLevel,
		},
		"empty": {
			in:  "",
			out: zerolog.InfoLevel,
		},
		"unknown": {
			in:  "chatty",
			out: zerolog.InfoLevel,
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer

			setupLogger(&buf, tc.in)
			assert.Equal(t, tc.out, zerolog.GlobalLevel())

			log.Warn().Msg("peer database not ready")
			assert.Contains(t, buf.String(), "WRN peer database not ready")
		})
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
