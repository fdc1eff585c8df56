// Package launch runs a process group on the local machine: N copies of a
// command, each told its rank, the group size and where the rendezvous
// service listens. It waits for every member and then checks that each one
// joined and released its membership exactly once.
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/group"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/logging"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/rendezvous"
)

// Options configures a launch.
type Options struct {
	Procs     int
	Command   []string
	Bind      string
	Timeout   time.Duration // zero waits forever
	AuditFile string
	Stdout    io.Writer
	Stderr    io.Writer
	Env       []string // added to the launcher's environment for every member
	Logger    *logging.Logger

	// GracePeriod is how long a cancelled member has between SIGTERM and
	// SIGKILL. Zero means DefaultGracePeriod.
	GracePeriod time.Duration
}

// DefaultGracePeriod is the SIGTERM-to-SIGKILL delay for cancelled members.
const DefaultGracePeriod = 2 * time.Second

func (o Options) gracePeriod() time.Duration {
	if o.GracePeriod > 0 {
		return o.GracePeriod
	}
	return DefaultGracePeriod
}

// Supervisor runs one process group.
type Supervisor struct {
	opts     Options
	newJobID func() string
}

// New validates opts and returns a supervisor.
func New(opts Options) (*Supervisor, error) {
	if opts.Procs < 1 {
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("process count must be at least 1, got %d", opts.Procs))
	}
	if len(opts.Command) == 0 || opts.Command[0] == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "no command to launch")
	}
	if opts.Timeout < 0 {
		return nil, core.ErrValidation(core.CodeInvalidConfig, "timeout must not be negative")
	}
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:0"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Supervisor{opts: opts, newJobID: uuid.NewString}, nil
}

// Run starts the rendezvous service, runs every member to completion and
// verifies membership. The report is returned even when err is non-nil,
// unless the launch could not start at all.
func (s *Supervisor) Run(ctx context.Context) (*Report, error) {
	jobID := s.newJobID()
	log := s.opts.Logger.WithJob(jobID)

	registry := rendezvous.NewRegistry(jobID, s.opts.Procs)
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return nil, core.ErrNetwork("listening on " + s.opts.Bind).WithCause(err)
	}
	addr := ln.Addr().String()

	// The service must outlive ctx: cancelled members get SIGTERM and still
	// release.
	srvCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
	srvDone := make(chan error, 1)
	server := rendezvous.NewServer(registry, rendezvous.WithLogger(log.Logger))
	go func() { srvDone <- server.Serve(srvCtx, ln) }()
	defer func() {
		stopServer()
		if err := <-srvDone; err != nil {
			log.Warn("rendezvous server stopped with error", "error", err)
		}
	}()

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	report := &Report{
		JobID:      jobID,
		Size:       s.opts.Procs,
		Command:    s.opts.Command,
		Rendezvous: addr,
		Started:    time.Now(),
		Exits:      make([]ExitStatus, s.opts.Procs),
	}
	log.Info("launching process group", "size", s.opts.Procs, "rendezvous", addr, "command", s.opts.Command)

	stdout, shareStdout := s.opts.Stdout.(*os.File)
	shared := &lockedWriter{w: s.opts.Stdout}

	// Every member runs to completion; Wait reports the first failure, which
	// becomes the cause of the ChildFailed error below.
	var g errgroup.Group
	for rank := 0; rank < s.opts.Procs; rank++ {
		g.Go(func() error {
			var out io.Writer = stdout
			if !shareStdout {
				lw := &lineWriter{out: shared}
				defer lw.Close()
				out = lw
			}
			status := s.runMember(runCtx, rank, jobID, addr, out, log)
			report.Exits[rank] = status
			return status.err()
		})
	}
	firstFailure := g.Wait()

	report.Finished = time.Now()
	report.Members = registry.Status().Members

	var errs []error
	if runCtx.Err() != nil && ctx.Err() == nil {
		errs = append(errs, core.ErrTimeout(fmt.Sprintf("process group did not finish within %s", s.opts.Timeout)))
	} else if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if failed := report.FailedRanks(); len(failed) > 0 {
		errs = append(errs, core.ErrExecution(core.CodeChildFailed,
			fmt.Sprintf("%d of %d members failed", len(failed), s.opts.Procs)).
			WithCause(firstFailure).
			WithDetail("ranks", failed))
	}
	if err := registry.Verify(); err != nil {
		errs = append(errs, err)
	}
	runErr := errors.Join(errs...)
	if runErr != nil {
		report.Failure = runErr.Error()
	}

	if s.opts.AuditFile != "" {
		if err := WriteAudit(s.opts.AuditFile, report); err != nil {
			log.Error("audit not written", "path", s.opts.AuditFile, "error", err)
			runErr = errors.Join(runErr, err)
		}
	}

	log.Info("process group finished",
		"duration", report.Finished.Sub(report.Started),
		"released", report.Released(),
		"failed", len(report.FailedRanks()),
	)
	return report, runErr
}

func (s *Supervisor) runMember(ctx context.Context, rank int, jobID, addr string, out io.Writer, log *logging.Logger) ExitStatus {
	status := ExitStatus{Rank: rank}

	cmd := exec.CommandContext(ctx, s.opts.Command[0], s.opts.Command[1:]...)
	cmd.Stdout = out
	cmd.Stderr = s.opts.Stderr
	cmd.Env = append(append(os.Environ(), s.opts.Env...),
		group.EnvRank+"="+strconv.Itoa(rank),
		group.EnvSize+"="+strconv.Itoa(s.opts.Procs),
		group.EnvRendezvous+"="+addr,
		group.EnvJobID+"="+jobID,
	)
	terminateOnCancel(cmd)
	cmd.WaitDelay = s.opts.gracePeriod()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		status.ExitCode = -1
		status.Error = err.Error()
		log.Error("member did not start", "rank", rank, "error", err)
		return status
	}
	status.PID = cmd.Process.Pid

	err := cmd.Wait()
	status.Duration = time.Since(start)
	status.ExitCode = cmd.ProcessState.ExitCode()
	if err != nil {
		status.Error = err.Error()
		log.Warn("member failed", "rank", rank, "pid", status.PID, "exit_code", status.ExitCode, "error", err)
	} else {
		log.Debug("member exited", "rank", rank, "pid", status.PID, "duration", status.Duration)
	}
	return status
}
