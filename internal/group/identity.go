package group

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

// Environment variables set by the bundled launcher.
const (
	EnvRank       = "TIMEOFFSET_RANK"
	EnvSize       = "TIMEOFFSET_SIZE"
	EnvRendezvous = "TIMEOFFSET_RENDEZVOUS"
	EnvJobID      = "TIMEOFFSET_JOB_ID"
)

// LauncherStandalone names the identity used when no launcher is detected.
const LauncherStandalone = "standalone"

// Identity is a member's position within its process group.
type Identity struct {
	Rank       int    `json:"rank" yaml:"rank"`
	Size       int    `json:"size" yaml:"size"`
	Launcher   string `json:"launcher" yaml:"launcher"`
	JobID      string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Rendezvous string `json:"rendezvous,omitempty" yaml:"rendezvous,omitempty"`
}

// Validate checks that 0 <= rank < size.
func (id Identity) Validate() error {
	if id.Size < 1 {
		return core.ErrGroup(core.CodeInvalidSize,
			fmt.Sprintf("group size must be at least 1 (launcher %s)", id.Launcher)).
			WithDetail("size", id.Size)
	}
	if id.Rank < 0 || id.Rank >= id.Size {
		return core.ErrGroup(core.CodeInvalidRank,
			fmt.Sprintf("rank %d outside [0, %d) (launcher %s)", id.Rank, id.Size, id.Launcher)).
			WithDetail("rank", id.Rank).
			WithDetail("size", id.Size)
	}
	return nil
}

// Standalone returns the identity of a process launched outside any group.
func Standalone() Identity {
	return Identity{Rank: 0, Size: 1, Launcher: LauncherStandalone}
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

type launcherVars struct {
	name string
	rank string
	size string
}

// Checked in order; the first launcher with either variable set wins.
var launchers = []launcherVars{
	{name: "time-offset", rank: EnvRank, size: EnvSize},
	{name: "openmpi", rank: "OMPI_COMM_WORLD_RANK", size: "OMPI_COMM_WORLD_SIZE"},
	{name: "pmi", rank: "PMI_RANK", size: "PMI_SIZE"},
	{name: "slurm", rank: "SLURM_PROCID", size: "SLURM_NTASKS"},
	{name: "torchrun", rank: "RANK", size: "WORLD_SIZE"},
}

// LauncherVariables lists every environment variable Detect consults.
func LauncherVariables() []string {
	vars := make([]string, 0, 2*len(launchers)+2)
	for _, l := range launchers {
		vars = append(vars, l.rank, l.size)
	}
	return append(vars, EnvRendezvous, EnvJobID)
}

// Detect resolves the identity prepared by the launcher. A nil lookup reads
// the process environment. With no launcher variables present the process is
// standalone.
func Detect(lookup LookupFunc) (Identity, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	for _, l := range launchers {
		rankStr, hasRank := get(l.rank)
		sizeStr, hasSize := get(l.size)
		if !hasRank && !hasSize {
			continue
		}
		if hasRank != hasSize {
			return Identity{}, core.ErrGroup(core.CodePartialIdentity,
				fmt.Sprintf("%s launcher sets only one of %s and %s", l.name, l.rank, l.size))
		}

		rank, err := strconv.Atoi(rankStr)
		if err != nil {
			return Identity{}, core.ErrGroup(core.CodeInvalidRank,
				fmt.Sprintf("%s=%q is not an integer", l.rank, rankStr)).WithCause(err)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return Identity{}, core.ErrGroup(core.CodeInvalidSize,
				fmt.Sprintf("%s=%q is not an integer", l.size, sizeStr)).WithCause(err)
		}

		id := Identity{Rank: rank, Size: size, Launcher: l.name}
		if l.rank == EnvRank {
			id.Rendezvous, _ = get(EnvRendezvous)
			id.JobID, _ = get(EnvJobID)
		}
		if err := id.Validate(); err != nil {
			return Identity{}, err
		}
		return id, nil
	}

	return Standalone(), nil
}
