package core

import (
	"context"
	"time"

	"github.com/cicsdev/go-jwt-tai/keystore"
	"github.com/cicsdev/go-jwt-tai/trust"
)

// State is the interceptor lifecycle state.
type State int

const (
	// StateUninitialized cores intercept nothing.
	StateUninitialized State = iota
	// StateInitialized cores hold a trust anchor.
	StateInitialized
)

// String returns the state name.
func (s State) String() string {
	if s == StateInitialized {
		return "initialized"
	}
	return "uninitialized"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// snapshot is published once per initialization attempt and never mutated.
type snapshot struct {
	state         State
	anchor        *trust.Anchor
	initializedAt time.Time
	lastErr       error
}

var uninitialized = &snapshot{state: StateUninitialized}

func (c *Core) current() *snapshot {
	if snap := c.snapshot.Load(); snap != nil {
		return snap
	}
	return uninitialized
}

// Health is a point-in-time view of the interceptor lifecycle.
type Health struct {
	State         State     `json:"state"`
	Source        string    `json:"source,omitempty"`
	AnchorKind    string    `json:"anchor_kind,omitempty"`
	KeyType       string    `json:"key_type,omitempty"`
	InitializedAt time.Time `json:"initialized_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
}

// Healthy reports whether requests can be intercepted.
func (h Health) Healthy() bool {
	return h.State == StateInitialized
}

// State returns the current lifecycle state.
func (c *Core) State() State {
	return c.current().state
}

// Health returns the current lifecycle state, the anchor source and the
// last initialization error, if any.
func (c *Core) Health() Health {
	snap := c.current()
	h := Health{
		State:         snap.state,
		InitializedAt: snap.initializedAt,
	}
	if snap.anchor != nil {
		h.Source = snap.anchor.Source()
		h.AnchorKind = snap.anchor.Kind().String()
		h.KeyType = snap.anchor.KeyType()
	}
	if snap.lastErr != nil {
		h.LastError = snap.lastErr.Error()
	}
	return h
}

// Initialize loads the key source described by cfg and publishes the
// resulting trust anchor.
//
// The error is returned and also recorded for Health. When a core that is
// already initialized fails to re-initialize, it keeps serving with the
// previous anchor.
func (c *Core) Initialize(ctx context.Context, cfg keystore.Config) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	anchor, err := c.loader(ctx, cfg, c.keystoreOpts...)
	if err == nil && anchor == nil {
		err = ErrAnchorNil
	}
	if err != nil {
		prev := c.current()
		next := *prev
		next.lastErr = err
		c.snapshot.Store(&next)

		if prev.state == StateInitialized {
			c.error("Key source reload failed, keeping previous trust anchor",
				"source", cfg.Describe(), "previous", prev.anchor.Source(), "error", err)
		} else {
			c.error("Key source could not be loaded, interceptor stays uninitialized",
				"source", cfg.Describe(), "error", err)
		}
		return err
	}

	c.publish(anchor)
	return nil
}

// InitializeWithAnchor publishes an anchor the host built itself.
func (c *Core) InitializeWithAnchor(anchor *trust.Anchor) error {
	if anchor == nil {
		return ErrAnchorNil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.publish(anchor)
	return nil
}

func (c *Core) publish(anchor *trust.Anchor) {
	c.snapshot.Store(&snapshot{
		state:         StateInitialized,
		anchor:        anchor,
		initializedAt: time.Now(),
	})
	c.info("Interceptor initialized", "source", anchor.Source(), "kind", anchor.Kind().String())
}
