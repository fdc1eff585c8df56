package group

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDetect_Launchers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want Identity
	}{
		{
			name: "standalone",
			env:  map[string]string{},
			want: Identity{Rank: 0, Size: 1, Launcher: LauncherStandalone},
		},
		{
			name: "time-offset launcher",
			env: map[string]string{
				EnvRank: "2", EnvSize: "4",
				EnvRendezvous: "127.0.0.1:4000", EnvJobID: "job-1",
			},
			want: Identity{Rank: 2, Size: 4, Launcher: "time-offset", JobID: "job-1", Rendezvous: "127.0.0.1:4000"},
		},
		{
			name: "openmpi",
			env:  map[string]string{"OMPI_COMM_WORLD_RANK": "3", "OMPI_COMM_WORLD_SIZE": "8"},
			want: Identity{Rank: 3, Size: 8, Launcher: "openmpi"},
		},
		{
			name: "pmi",
			env:  map[string]string{"PMI_RANK": "0", "PMI_SIZE": "2"},
			want: Identity{Rank: 0, Size: 2, Launcher: "pmi"},
		},
		{
			name: "slurm",
			env:  map[string]string{"SLURM_PROCID": "5", "SLURM_NTASKS": "6"},
			want: Identity{Rank: 5, Size: 6, Launcher: "slurm"},
		},
		{
			name: "torchrun",
			env:  map[string]string{"RANK": "1", "WORLD_SIZE": "2"},
			want: Identity{Rank: 1, Size: 2, Launcher: "torchrun"},
		},
		{
			name: "openmpi wins over slurm",
			env: map[string]string{
				"OMPI_COMM_WORLD_RANK": "1", "OMPI_COMM_WORLD_SIZE": "2",
				"SLURM_PROCID": "0", "SLURM_NTASKS": "1",
			},
			want: Identity{Rank: 1, Size: 2, Launcher: "openmpi"},
		},
		{
			name: "rendezvous ignored for other launchers",
			env: map[string]string{
				"PMI_RANK": "0", "PMI_SIZE": "1",
				EnvRendezvous: "127.0.0.1:1", EnvJobID: "j",
			},
			want: Identity{Rank: 0, Size: 1, Launcher: "pmi"},
		},
		{
			name: "blank values are unset",
			env:  map[string]string{EnvRank: "", EnvSize: "  "},
			want: Identity{Rank: 0, Size: 1, Launcher: LauncherStandalone},
		},
		{
			name: "whitespace trimmed",
			env:  map[string]string{"PMI_RANK": " 1 ", "PMI_SIZE": "2\n"},
			want: Identity{Rank: 1, Size: 2, Launcher: "pmi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(envMap(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		code string
	}{
		{"rank without size", map[string]string{"PMI_RANK": "0"}, core.CodePartialIdentity},
		{"size without rank", map[string]string{"SLURM_NTASKS": "4"}, core.CodePartialIdentity},
		{"non-integer rank", map[string]string{"RANK": "one", "WORLD_SIZE": "2"}, core.CodeInvalidRank},
		{"non-integer size", map[string]string{"RANK": "0", "WORLD_SIZE": "two"}, core.CodeInvalidSize},
		{"rank equals size", map[string]string{EnvRank: "4", EnvSize: "4"}, core.CodeInvalidRank},
		{"negative rank", map[string]string{EnvRank: "-1", EnvSize: "4"}, core.CodeInvalidRank},
		{"zero size", map[string]string{EnvRank: "0", EnvSize: "0"}, core.CodeInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(envMap(tt.env))
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatGroup), "category of %v", err)
			assert.True(t, errors.Is(err, core.ErrGroup(tt.code, "")), "code of %v", err)
		})
	}
}

func TestDetect_NilLookupReadsEnvironment(t *testing.T) {
	for _, v := range LauncherVariables() {
		t.Setenv(v, "")
	}
	t.Setenv("SLURM_PROCID", "1")
	t.Setenv("SLURM_NTASKS", "3")

	id, err := Detect(nil)
	require.NoError(t, err)
	assert.Equal(t, Identity{Rank: 1, Size: 3, Launcher: "slurm"}, id)
}

func TestIdentity_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Standalone().Validate())
	assert.NoError(t, Identity{Rank: 3, Size: 4}.Validate())
	assert.Error(t, Identity{Rank: 4, Size: 4}.Validate())
	assert.Error(t, Identity{Rank: 0, Size: 0}.Validate())
}

func TestLauncherVariables(t *testing.T) {
	t.Parallel()
	vars := LauncherVariables()
	for _, want := range []string{EnvRank, EnvSize, EnvRendezvous, EnvJobID, "OMPI_COMM_WORLD_RANK", "SLURM_NTASKS", "WORLD_SIZE"} {
		assert.Contains(t, vars, want)
	}
}
