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

package receiver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuarc/hostap/internal/noob"
	"github.com/mmuarc/hostap/internal/peerstore"
	"github.com/mmuarc/hostap/internal/publish"
	testdb "github.com/mmuarc/hostap/internal/testing/db"
)

func testMessage(t *testing.T, noobValue noob.Noob) string {
	t.Helper()

	message, err := publish.BuildMessage(&noob.Attempt{
		Ssid:     "noob",
		PeerID:   "P1",
		Noob:     noobValue,
		NoobID:   noob.ComputeNoobID(noobValue),
		Hoob:     "_n3c-ecsWGlrQTfpqQ82JQ",
		SentTime: 1700000000,
	}, &noob.ServerInfo{URL: "http://receiver.test/sendoob"})
	require.NoError(t, err)

	return strings.TrimPrefix(message, "http://receiver.test")
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	return rec.Code, string(body)
}

func TestUsage(t *testing.T) {
	code, body := get(t, NewAPI(nil).Handler(), "/")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/sendoob/<oobString>")
}

func TestSendOOB(t *testing.T) {
	db := testdb.WithServerDatabase(t)
	store := peerstore.NewServerStore(db)
	h := NewAPI(store).Handler()

	code, body := get(t, h, testMessage(t, "AAECAwQFBgcICQoLDA0ODw"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, insertedMessage, body)

	code, body = get(t, h, testMessage(t, "AQEBAQEBAQEBAQEBAQEBAQ"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, replacedMessage, body)

	current, err := store.Noob(context.Background(), "P1")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, noob.Noob("AQEBAQEBAQEBAQEBAQEBAQ"), current.Noob)
	assert.Equal(t, noob.ComputeNoobID("AQEBAQEBAQEBAQEBAQEBAQ"), current.NoobID)
}

type brokenStore struct {
	err error
}

func (s brokenStore) ReplaceNoob(_ context.Context, _ *noob.Attempt) (bool, error) {
	return false, s.err
}

func TestSendOOBErrors(t *testing.T) {
	testcases := map[string]struct {
		store Store
		path  string
		code  int
	}{
		"malformed message": {
			store: brokenStore{},
			path:  "/sendoob/not-a-message",
			code:  http.StatusBadRequest,
		},
		"store unavailable": {
			store: brokenStore{err: noob.ErrStoreUnavailable},
			code:  http.StatusServiceUnavailable,
		},
		"store failure": {
			store: brokenStore{err: errors.New("constraint failed")},
			code:  http.StatusInternalServerError,
		},
		"missing segment": {
			store: brokenStore{},
			path:  "/sendoob/",
			code:  http.StatusNotFound,
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			path := tc.path
			if path == "" {
				path = testMessage(t, "AAECAwQFBgcICQoLDA0ODw")
			}

			code, _ := get(t, NewAPI(tc.store).Handler(), path)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestSendOOBMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sendoob/abc", nil)
	rec := httptest.NewRecorder()

	NewAPI(brokenStore{}).Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
