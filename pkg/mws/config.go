package mws

import (
	"fmt"
	"strings"
	"time"
)

// GrantPolicy decides how Acquire requests from the peer are answered.
type GrantPolicy int

// Grant policies.
const (
	// GrantAlways answers every Acquire with Active.
	GrantAlways GrantPolicy = iota
	// GrantByRadio asks the local Radio and answers Denied when it refuses.
	GrantByRadio
)

// String implements fmt.Stringer.
func (p GrantPolicy) String() string {
	if p == GrantByRadio {
		return "radio"
	}
	return "always"
}

// ParseGrantPolicy parses "always" or "radio".
func ParseGrantPolicy(s string) (GrantPolicy, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return GrantAlways, nil
	case "radio":
		return GrantByRadio, nil
	}
	return GrantAlways, fmt.Errorf("%w: unknown grant policy %q", ErrInvalidParameter, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *GrantPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseGrantPolicy(string(text))
	if err == nil {
		*p = policy
	}
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (p GrantPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// DefaultRequestTimeout bounds how long a request waits for its reply.
const DefaultRequestTimeout = time.Second

// Config configures an Endpoint.
type Config struct {
	RequestTimeout time.Duration
	GrantPolicy    GrantPolicy
	// RequireRegistration denies Acquire from protocols the peer never
	// registered.
	RequireRegistration bool
	// Exclusive is passed to Radio.Acquire when granting the peer.
	Exclusive  bool
	Priorities Priorities
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: DefaultRequestTimeout,
		GrantPolicy:    GrantAlways,
		Priorities:     DefaultPriorities,
	}
}

func (c *Config) normalize() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}
