package group

import (
	"context"
	"os"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/logging"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/rendezvous"
)

// EnvRuntime acquires membership from the launcher's environment and, when
// the launcher runs a rendezvous service, joins it.
type EnvRuntime struct {
	lookup   LookupFunc
	hostname func() string
	client   func(addr string) *rendezvous.Client
	logger   *logging.Logger
}

// EnvOption configures an EnvRuntime.
type EnvOption func(*EnvRuntime)

// WithLookup overrides the environment lookup.
func WithLookup(lookup LookupFunc) EnvOption {
	return func(r *EnvRuntime) { r.lookup = lookup }
}

// WithHostname sets the hostname reported when joining a rendezvous.
func WithHostname(fn func() string) EnvOption {
	return func(r *EnvRuntime) { r.hostname = fn }
}

// WithRuntimeLogger sets the runtime logger.
func WithRuntimeLogger(logger *logging.Logger) EnvOption {
	return func(r *EnvRuntime) { r.logger = logger }
}

// NewEnvRuntime creates an environment-backed initializer.
func NewEnvRuntime(opts ...EnvOption) *EnvRuntime {
	r := &EnvRuntime{
		lookup: os.LookupEnv,
		hostname: func() string {
			h, _ := os.Hostname()
			return h
		},
		client: func(addr string) *rendezvous.Client { return rendezvous.NewClient(addr, nil) },
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init detects this process's identity and joins the rendezvous service if
// one is advertised. args are not interpreted.
func (r *EnvRuntime) Init(ctx context.Context, args []string) (*Handle, error) {
	id, err := Detect(r.lookup)
	if err != nil {
		return nil, err
	}
	log := r.logger.WithMember(id.Rank, id.Size)
	log.Debug("group membership detected", "launcher", id.Launcher, "args", len(args))

	if id.Rendezvous == "" {
		return NewHandle(id, nil), nil
	}
	if id.JobID == "" {
		return nil, core.ErrGroup(core.CodePartialIdentity,
			EnvRendezvous+" is set without "+EnvJobID)
	}

	client := r.client(id.Rendezvous)
	if _, err := client.Join(ctx, id.JobID, id.Rank, rendezvous.JoinRequest{
		Hostname: r.hostname(),
		PID:      os.Getpid(),
	}); err != nil {
		return nil, core.ErrGroup(core.CodeJoinFailed, "joining rendezvous at "+id.Rendezvous).WithCause(err)
	}
	log.Debug("joined rendezvous", "addr", id.Rendezvous, "job_id", id.JobID)

	release := func(ctx context.Context) error {
		if _, err := client.Release(ctx, id.JobID, id.Rank); err != nil {
			log.Warn("releasing membership failed", "error", err)
			return core.ErrRelease(core.CodeReleaseFailed, "leaving rendezvous at "+id.Rendezvous).WithCause(err)
		}
		log.Debug("released membership")
		return nil
	}
	return NewHandle(id, release), nil
}
