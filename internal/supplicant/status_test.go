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

package supplicant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successOutput = `Selected interface 'wlan0'
bssid=02:00:00:00:01:00
freq=2412
ssid=noob
id=0
mode=station
pairwise_cipher=CCMP
key_mgmt=WPA2/IEEE 802.1X/EAP
wpa_state=COMPLETED
EAP state=SUCCESS
selectedMethod=56 (EAP-NOOB)
`

func TestAuthenticated(t *testing.T) {
	testcases := map[string]struct {
		out []byte
		err error
		ok  bool
	}{
		"success": {
			out: []byte(successOutput),
			ok:  true,
		},
		"pending": {
			out: []byte("wpa_state=ASSOCIATED\nEAP state=METHOD\n"),
		},
		"not connected": {
			out: []byte("wpa_state=DISCONNECTED\n"),
		},
		"crlf line endings": {
			out: []byte("wpa_state=COMPLETED\r\nEAP state=SUCCESS\r\n"),
			ok:  true,
		},
		"cli failure": {
			err: errors.New("exit status 255"),
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			checker := NewStatusChecker(WithRunner(
				func(_ context.Context, _ string, _ ...string) ([]byte, error) {
					return tc.out, tc.err
				}))

			ok, err := checker.Authenticated(context.Background())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.False(t, ok)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestStatusArguments(t *testing.T) {
	testcases := map[string]struct {
		options []StatusCheckerOption
		name    string
		args    []string
	}{
		"defaults": {
			name: "wpa_cli",
			args: []string{"status"},
		},
		"interface and binary": {
			options: []StatusCheckerOption{WithCLI("/opt/hostap/wpa_cli"), WithInterface("wlan0")},
			name:    "/opt/hostap/wpa_cli",
			args:    []string{"-i", "wlan0", "status"},
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			var gotName string

			var gotArgs []string

			options := append([]StatusCheckerOption{WithRunner(
				func(_ context.Context, name string, args ...string) ([]byte, error) {
					gotName = name
					gotArgs = args

					return []byte(successOutput), nil
				})}, tc.options...)

			status, err := NewStatusChecker(options...).Status(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tc.name, gotName)
			assert.Equal(t, tc.args, gotArgs)
			assert.Equal(t, "noob", status["ssid"])
			assert.Equal(t, "56 (EAP-NOOB)", status["selectedMethod"])
		})
	}
}
