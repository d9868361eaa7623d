package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
)

// Policy decides when a toggle's new value is adopted in memory.
type Policy string

const (
	// PolicyOptimistic adopts the requested value immediately and checks
	// the store once in the background, only logging a mismatch.
	PolicyOptimistic Policy = "optimistic"

	// PolicyVerify adopts a value only after the store confirms it,
	// retrying a bounded number of times and reconciling on exhaustion.
	PolicyVerify Policy = "verify"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyOptimistic, PolicyVerify:
		return p, nil
	default:
		return "", fmt.Errorf("unknown sync policy %q: must be optimistic or verify", s)
	}
}

// Defaults for Config.
const (
	DefaultPolicy        = PolicyVerify
	DefaultVerifyDelay   = 200 * time.Millisecond
	DefaultVerifyRetries = 3
	DefaultConcurrency   = 8
)

// Config holds the engine's tunables.
type Config struct {
	Policy        Policy
	VerifyDelay   time.Duration
	VerifyRetries int
	Concurrency   int
	Services      []ir.ServiceKind
}

// DefaultConfig returns the verify-before-settle configuration.
func DefaultConfig() Config {
	return Config{
		Policy:        DefaultPolicy,
		VerifyDelay:   DefaultVerifyDelay,
		VerifyRetries: DefaultVerifyRetries,
		Concurrency:   DefaultConcurrency,
		Services:      ir.AllServices,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Policy == "" {
		c.Policy = d.Policy
	}
	if c.VerifyDelay < 0 {
		c.VerifyDelay = 0
	}
	if c.VerifyRetries <= 0 {
		c.VerifyRetries = d.VerifyRetries
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if len(c.Services) == 0 {
		c.Services = d.Services
	}
	return c
}
