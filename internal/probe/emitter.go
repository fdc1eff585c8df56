// Package probe emits the one-line diagnostic each group member prints:
// local wall-clock time, rank and host name.
package probe

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/group"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/logging"
)

// Emitter runs the member lifecycle: init, query, sample, emit, release.
type Emitter struct {
	Out      io.Writer
	Clock    func() time.Time
	Hostname func() string
	Logger   *logging.Logger
}

// NewEmitter returns an emitter writing to stdout with the real clock and
// hostname.
func NewEmitter(logger *logging.Logger) *Emitter {
	return &Emitter{
		Out:      os.Stdout,
		Clock:    time.Now,
		Hostname: LocalHostname,
		Logger:   logger,
	}
}

// Run acquires membership through init, writes one line and releases the
// membership. Release happens on every path once init has succeeded. If both
// the write and the release fail, both errors are returned.
func (e *Emitter) Run(ctx context.Context, init group.Initializer, args []string) error {
	log := e.Logger
	if log == nil {
		log = logging.NewNop()
	}

	err := group.Scope(ctx, init, args, func(h *group.Handle) error {
		s := Sample{
			Rank:     h.Rank(),
			Size:     h.Size(),
			Time:     e.Clock(),
			Hostname: e.Hostname(),
		}
		if s.Hostname == "" {
			log.Warn("hostname unavailable, emitting empty field", "rank", s.Rank)
		}

		// One Write per line: peers sharing the stream interleave whole lines.
		if _, err := io.WriteString(e.Out, FormatLine(s)); err != nil {
			return core.ErrExecution(core.CodeEmitFailed, "writing diagnostic line").WithCause(err)
		}
		log.Debug("diagnostic emitted", "rank", s.Rank, "size", s.Size, "hostname", s.Hostname)
		return nil
	})
	if err != nil {
		log.Error("diagnostic run failed", "error", err)
	}
	return err
}
