// Package rendezvous tracks the members of a launched process group: which
// ranks joined, which released, and how often. The bundled launcher serves it
// over HTTP on loopback; members talk to it through Client.
package rendezvous

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

// JoinRequest is what a member reports about itself when joining.
type JoinRequest struct {
	Hostname string `json:"hostname"`
	PID      int    `json:"pid"`
}

// Member is the registry's record of one rank.
type Member struct {
	Rank       int        `json:"rank"`
	Hostname   string     `json:"hostname,omitempty"`
	PID        int        `json:"pid,omitempty"`
	JoinedAt   *time.Time `json:"joined_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	Joins      int        `json:"joins"`    // join attempts, including rejected ones
	Releases   int        `json:"releases"` // release attempts, including rejected ones
}

// Joined reports whether the member has an accepted join.
func (m Member) Joined() bool { return m.JoinedAt != nil }

// Released reports whether the member has an accepted release.
func (m Member) Released() bool { return m.ReleasedAt != nil }

// Status summarizes a job's membership.
type Status struct {
	JobID    string   `json:"job_id"`
	Size     int      `json:"size"`
	Joined   int      `json:"joined"`
	Released int      `json:"released"`
	Members  []Member `json:"members"`
}

// Registry holds the membership of one job. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	jobID   string
	members []Member
	now     func() time.Time
}

// NewRegistry creates a registry for a job of the given size.
func NewRegistry(jobID string, size int) *Registry {
	members := make([]Member, size)
	for i := range members {
		members[i].Rank = i
	}
	return &Registry{
		jobID:   jobID,
		members: members,
		now:     time.Now,
	}
}

// JobID returns the job this registry tracks.
func (r *Registry) JobID() string { return r.jobID }

// Size returns the group size.
func (r *Registry) Size() int { return len(r.members) }

func (r *Registry) member(rank int) (*Member, error) {
	if rank < 0 || rank >= len(r.members) {
		return nil, core.ErrValidation(core.CodeInvalidRank,
			fmt.Sprintf("rank %d outside [0, %d)", rank, len(r.members)))
	}
	return &r.members[rank], nil
}

// Join records a member joining. A second join for the same rank is rejected.
func (r *Registry) Join(rank int, req JoinRequest) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.member(rank)
	if err != nil {
		return Member{}, err
	}
	m.Joins++
	if m.Joined() {
		return *m, core.ErrConflict(core.CodeAlreadyJoined,
			fmt.Sprintf("rank %d already joined", rank))
	}

	now := r.now()
	m.JoinedAt = &now
	m.Hostname = req.Hostname
	m.PID = req.PID
	return *m, nil
}

// Release records a member releasing its membership. Releasing before
// joining, or releasing twice, is rejected.
func (r *Registry) Release(rank int) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.member(rank)
	if err != nil {
		return Member{}, err
	}
	m.Releases++
	if !m.Joined() {
		return *m, core.ErrConflict(core.CodeNotJoined,
			fmt.Sprintf("rank %d released without joining", rank))
	}
	if m.Released() {
		return *m, core.ErrConflict(core.CodeAlreadyReleased,
			fmt.Sprintf("rank %d already released", rank))
	}

	now := r.now()
	m.ReleasedAt = &now
	return *m, nil
}

// Status returns a copy of the current membership.
func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		JobID:   r.jobID,
		Size:    len(r.members),
		Members: make([]Member, len(r.members)),
	}
	copy(st.Members, r.members)
	for _, m := range r.members {
		if m.Joined() {
			st.Joined++
		}
		if m.Released() {
			st.Released++
		}
	}
	return st
}

// Verify checks that every rank joined exactly once and released exactly
// once. The returned error lists the offending ranks.
func (r *Registry) Verify() error {
	st := r.Status()

	var neverJoined, leaked, repeated []int
	for _, m := range st.Members {
		switch {
		case !m.Joined():
			neverJoined = append(neverJoined, m.Rank)
		case !m.Released():
			leaked = append(leaked, m.Rank)
		case m.Joins != 1 || m.Releases != 1:
			repeated = append(repeated, m.Rank)
		}
	}
	if len(neverJoined)+len(leaked)+len(repeated) == 0 {
		return nil
	}

	var parts []string
	if len(neverJoined) > 0 {
		parts = append(parts, "never joined: "+formatRanks(neverJoined))
	}
	if len(leaked) > 0 {
		parts = append(parts, "not released: "+formatRanks(leaked))
	}
	if len(repeated) > 0 {
		parts = append(parts, "repeated join or release: "+formatRanks(repeated))
	}

	code := core.CodeMissingMembers
	if len(neverJoined) == 0 && len(leaked) > 0 {
		code = core.CodeNotReleased
	}
	return core.ErrValidation(code, strings.Join(parts, "; ")).
		WithDetail("never_joined", neverJoined).
		WithDetail("not_released", leaked).
		WithDetail("repeated", repeated)
}

func formatRanks(ranks []int) string {
	sort.Ints(ranks)
	s := make([]string, len(ranks))
	for i, r := range ranks {
		s[i] = fmt.Sprint(r)
	}
	return strings.Join(s, ",")
}
