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

// Package receiver is the server side end point an OOB message is delivered
// to. It stores the Noob of the peer for the authentication server.
package receiver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/mmuarc/hostap/internal/noob"
	"github.com/mmuarc/hostap/internal/publish"
)

const (
	usageMessage = "This is a simple webserver for delivering the OOB message. " +
		"Please invoke /sendoob/<oobString> to deliver an OOB"
	insertedMessage = "Inserted new oob"
	replacedMessage = "Replaced existing oob"
)

// Store keeps the single current OOB message of every peer.
type Store interface {
	ReplaceNoob(ctx context.Context, a *noob.Attempt) (bool, error)
}

type API struct {
	store Store
}

func NewAPI(store Store) *API {
	return &API{store: store}
}

// AddTo registers the routes of the API on r.
func (a *API) AddTo(r *mux.Router) {
	r.Methods(http.MethodGet).Path("/").HandlerFunc(a.handleUsage)
	r.Methods(http.MethodGet).Path("/sendoob/{oob}").HandlerFunc(a.handleSendOOB)
}

// Handler returns a router serving the API.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	a.AddTo(r)

	return r
}

func (a *API) handleUsage(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, usageMessage)
}

func (a *API) handleSendOOB(w http.ResponseWriter, r *http.Request) {
	attempt, err := publish.DecodeMessage(mux.Vars(r)["oob"])
	if err != nil {
		log.Debug().Err(err).Msg("Rejected OOB message")
		respond(w, http.StatusBadRequest, err.Error())

		return
	}

	replaced, err := a.store.ReplaceNoob(r.Context(), attempt)
	if err != nil {
		log.Error().Err(err).Str("peer_id", attempt.PeerID).Msg("Cannot store OOB message")

		code := http.StatusInternalServerError
		if errors.Is(err, noob.ErrStoreUnavailable) {
			code = http.StatusServiceUnavailable
		}

		respond(w, code, http.StatusText(code))

		return
	}

	log.Info().
		Str("peer_id", attempt.PeerID).
		Str("noob_id", string(attempt.NoobID)).
		Bool("replaced", replaced).
		Msg("Received OOB message")

	if replaced {
		respond(w, http.StatusOK, replacedMessage)
	} else {
		respond(w, http.StatusOK, insertedMessage)
	}
}

func respond(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)

	//nolint:errcheck // nothing to do when the client went away
	io.WriteString(w, body)
}
