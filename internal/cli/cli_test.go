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
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuarc/hostap/internal/daemon"
	"github.com/mmuarc/hostap/internal/noob"
	"github.com/mmuarc/hostap/internal/peerstore"
	testdb "github.com/mmuarc/hostap/internal/testing/db"
)

const (
	testConfigFile = "/etc/noob-agent/config.yaml"
	testMacInput   = `["v1","EAP-NOOB","nonceA"]`
	testServerInfo = `{"name":"srv","url":"https://noob.example.com/sendoob"}`
)

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := RootCmd(context.Background(), fs)
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", testConfigFile}, args...))

	err := cmd.Execute()

	return out.String(), err
}

// initAgent runs init and returns the directory holding the databases.
func initAgent(t *testing.T, fs afero.Fs) string {
	t.Helper()

	stateDir := t.TempDir()

	_, err := execute(t, fs, "init", "--state-dir", stateDir, "--interface", "wlan0")
	require.NoError(t, err)

	return stateDir
}

func insertReadyPeer(t *testing.T, stateDir string) {
	t.Helper()

	db, err := peerstore.Open(filepath.Join(stateDir, "noob_peer.db"), 0)
	require.NoError(t, err)

	defer db.Close()

	testdb.InsertPeer(t, db, "noob", "P1", int(noob.PeerStateOOBReady), testMacInput, testServerInfo)
}

func TestInit(t *testing.T) {
	fs := afero.NewMemMapFs()
	stateDir := initAgent(t, fs)

	cfg, err := daemon.LoadConfig(fs, testConfigFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stateDir, "noob_peer.db"), cfg.Store.PeerDB)
	assert.Equal(t, "wlan0", cfg.Supplicant.Interface)

	// both schemas are in place
	insertReadyPeer(t, stateDir)

	db, err := peerstore.Open(cfg.Server.DB, 0)
	require.NoError(t, err)

	defer db.Close()

	_, err = peerstore.NewServerStore(db).ReplaceNoob(context.Background(), &noob.Attempt{PeerID: "P1"})
	require.NoError(t, err)

	_, err = execute(t, fs, "init", "--state-dir", stateDir)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, fs, "init", "--state-dir", stateDir, "--force", "--skip-schema")
	assert.NoError(t, err)
}

func TestIssue(t *testing.T) {
	fs := afero.NewMemMapFs()
	stateDir := initAgent(t, fs)

	_, err := execute(t, fs, "issue")
	assert.ErrorIs(t, err, noob.ErrNoPeerSelected)

	insertReadyPeer(t, stateDir)

	first, err := execute(t, fs, "issue")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "https://noob.example.com/sendoob/"), first)

	again, err := execute(t, fs, "issue")
	require.NoError(t, err)
	assert.Equal(t, first, again, "current message must be reused")

	forced, err := execute(t, fs, "issue", "--force")
	require.NoError(t, err)
	assert.NotEqual(t, first, forced)
}

func TestStatus(t *testing.T) {
	fs := afero.NewMemMapFs()
	stateDir := initAgent(t, fs)
	insertReadyPeer(t, stateDir)

	out, err := execute(t, fs, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "due")

	_, err = execute(t, fs, "issue")
	require.NoError(t, err)

	out, err = execute(t, fs, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "from now")
}

func TestWriteStatus(t *testing.T) {
	db := testdb.WithPeerDatabase(t)
	testdb.InsertPeer(t, db, "noob", "P1", int(noob.PeerStateOOBReady), testMacInput, testServerInfo)

	store := peerstore.New(db)
	now := time.Unix(1700000600, 0)

	require.NoError(t, store.AppendAttempt(context.Background(), &noob.Attempt{
		Ssid:     "noob",
		PeerID:   "P1",
		NoobID:   "_eLVoNvu8itthIXtO6Gojg",
		SentTime: now.Unix() - 120,
	}))

	cfg := &daemon.Config{OOB: daemon.OOBConfig{ReissueInterval: 300 * time.Second}}

	var out bytes.Buffer

	require.NoError(t, writeStatus(context.Background(), &out, cfg, store, now))

	assert.Contains(t, out.String(), "_eLVoNvu8itthIXtO6Gojg")
	assert.Contains(t, out.String(), "2 minutes ago")
	assert.Contains(t, out.String(), "3 minutes from now")
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, afero.NewMemMapFs(), "--log-level", "chatty", "status")
	assert.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, afero.NewMemMapFs(), "start")
	assert.ErrorContains(t, err, "configuration error")
}

type countingAuth struct {
	calls     atomic.Int64
	succeedAt int64
}

func (a *countingAuth) Authenticated(_ context.Context) (bool, error) {
	return a.calls.Add(1) >= a.succeedAt, nil
}

func TestRunAgent(t *testing.T) {
	fs := afero.NewMemMapFs()
	stateDir := initAgent(t, fs)
	insertReadyPeer(t, stateDir)

	cfg, err := daemon.LoadConfig(fs, testConfigFile)
	require.NoError(t, err)

	cfg.OOB.PollInterval = time.Millisecond
	cfg.OOB.MessageFile = "/run/noob/oob_url"
	require.NoError(t, fs.MkdirAll("/run/noob", 0o755))

	auth := &countingAuth{succeedAt: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g := &globalFlags{fs: fs, configFile: testConfigFile}
	require.NoError(t, runAgent(ctx, g, cfg, auth))
	assert.Equal(t, int64(3), auth.calls.Load())

	data, err := afero.ReadFile(fs, "/run/noob/oob_url")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "https://noob.example.com/sendoob/"))
}

func TestSetupTelemetry(t *testing.T) {
	ctx := context.Background()

	disabled, err := setupTelemetry(ctx, daemon.ObservabilityConfig{})
	require.NoError(t, err)
	assert.Nil(t, disabled.handler)
	assert.NoError(t, disabled.Shutdown(ctx))

	enabled, err := setupTelemetry(ctx, daemon.ObservabilityConfig{
		Metrics: daemon.MetricsConfig{Enabled: true},
	})
	require.NoError(t, err)
	require.NotNil(t, enabled.handler)

	counter, err := enabled.meterProvider.Meter("test").Int64Counter("noob.test")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	rec := httptest.NewRecorder()
	enabled.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noob_test")
	assert.NoError(t, enabled.Shutdown(ctx))

	_, err = setupTelemetry(ctx, daemon.ObservabilityConfig{
		Tracing: daemon.TracingConfig{Enabled: true},
	})
	assert.Error(t, err)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)

	go func() {
		done <- serveHTTP(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	cancel()

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
