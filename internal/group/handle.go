package group

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ReleaseFunc tears down a membership with the runtime that granted it.
type ReleaseFunc func(ctx context.Context) error

// Handle is an acquired group membership. It must be finalized exactly once.
type Handle struct {
	id      Identity
	release ReleaseFunc

	once      sync.Once
	err       error
	finalized atomic.Bool
}

// NewHandle wraps an identity and the function that releases it.
// A nil release is treated as a no-op.
func NewHandle(id Identity, release ReleaseFunc) *Handle {
	return &Handle{id: id, release: release}
}

// Rank returns this member's rank.
func (h *Handle) Rank() int { return h.id.Rank }

// Size returns the group size.
func (h *Handle) Size() int { return h.id.Size }

// Identity returns the full identity.
func (h *Handle) Identity() Identity { return h.id }

// Finalize releases the membership. Only the first call reaches the runtime;
// later calls return the first call's result.
func (h *Handle) Finalize(ctx context.Context) error {
	h.once.Do(func() {
		defer h.finalized.Store(true)
		if h.release != nil {
			h.err = h.release(ctx)
		}
	})
	return h.err
}

// Finalized reports whether Finalize has completed.
func (h *Handle) Finalized() bool {
	return h.finalized.Load()
}

// Initializer acquires group membership. args are the program's arguments,
// forwarded unexamined.
type Initializer interface {
	Init(ctx context.Context, args []string) (*Handle, error)
}

// InitializerFunc adapts a function to Initializer.
type InitializerFunc func(ctx context.Context, args []string) (*Handle, error)

// Init calls f.
func (f InitializerFunc) Init(ctx context.Context, args []string) (*Handle, error) {
	return f(ctx, args)
}

// Scope acquires membership, runs fn and always finalizes, including when fn
// returns an error or panics. A release failure is joined onto fn's error.
// Release runs on a context detached from ctx's cancellation so that an
// interrupted member still leaves the group.
func Scope(ctx context.Context, init Initializer, args []string, fn func(*Handle) error) (err error) {
	h, err := init.Init(ctx, args)
	if err != nil {
		return err
	}

	defer func() {
		if relErr := h.Finalize(context.WithoutCancel(ctx)); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	return fn(h)
}
