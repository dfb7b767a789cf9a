package gatewise

import "time"

// Config holds configuration for the gatewise engine. There are no mutable
// globals: all tunables enter through this struct at construction.
type Config struct {
	// MaxInheritanceDepth bounds the role parent-chain walk. A chain longer
	// than this is treated as a configuration fault. Defaults to 10.
	MaxInheritanceDepth int `json:"max_inheritance_depth,omitempty"`

	// CacheTTL is the time-to-live for cached decisions. Only takes effect
	// when a cache is configured.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// EnableConditional enables attribute-conditioned grant evaluation.
	// Defaults to true.
	EnableConditional *bool `json:"enable_conditional,omitempty"`

	// EnableTemporal enables time-based grant evaluation.
	// Defaults to true.
	EnableTemporal *bool `json:"enable_temporal,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		MaxInheritanceDepth: 10,
		EnableConditional:   &t,
		EnableTemporal:      &t,
	}
}

func (c Config) conditionalEnabled() bool { return c.EnableConditional == nil || *c.EnableConditional }
func (c Config) temporalEnabled() bool    { return c.EnableTemporal == nil || *c.EnableTemporal }
