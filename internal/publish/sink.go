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

package publish

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/mmuarc/hostap/internal/atomicfile"
	"github.com/mmuarc/hostap/internal/noob"
)

// Sink receives every new OOB message.
type Sink interface {
	Write(ctx context.Context, a *noob.Attempt, message string) error
}

// LogSink writes the message to the logger of ctx, or to the global logger.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, a *noob.Attempt, message string) error {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	logger.Info().
		Str("ssid", a.Ssid).
		Str("peer_id", a.PeerID).
		Str("noob_id", string(a.NoobID)).
		Str("url", message).
		Msg("OOB message ready")

	return nil
}

// FileSink replaces the content of a file with the message, so that an
// external display can pick it up.
type FileSink struct {
	fs   afero.Fs
	path string
	perm os.FileMode
}

func NewFileSink(fs afero.Fs, path string) *FileSink {
	return &FileSink{
		fs:   fs,
		path: path,
		perm: 0o644,
	}
}

func (s *FileSink) Write(_ context.Context, _ *noob.Attempt, message string) error {
	return atomicfile.WriteFileWithFs(s.fs, s.path, []byte(message+"\n"), s.perm)
}
