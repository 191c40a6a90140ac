package reassembly

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DuplicatePolicy controls how a repeated chunk index is handled.
type DuplicatePolicy string

const (
	// IgnoreIfIdentical treats any repeated index as a retransmit: the first
	// payload wins. A differing payload is still reported as conflicting_chunk.
	IgnoreIfIdentical DuplicatePolicy = "ignore_if_identical"
	// RejectOnConflict rejects a repeated index whose payload differs.
	RejectOnConflict DuplicatePolicy = "reject_on_conflict"
)

// ParseDuplicatePolicy parses a policy name. Empty input yields the default.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(s)) {
	case "", IgnoreIfIdentical:
		return IgnoreIfIdentical, nil
	case RejectOnConflict:
		return RejectOnConflict, nil
	default:
		return "", fmt.Errorf("invalid duplicate chunk policy %q (must be %s or %s)", s, IgnoreIfIdentical, RejectOnConflict)
	}
}

// Defaults.
const (
	DefaultMaxAssemblyAge      = 30 * time.Second
	DefaultMaxInFlightMessages = 1024
	DefaultMaxMessageSize      = 1 * 1024 * 1024 * 1024 // 1 GiB
	DefaultSweepInterval       = time.Second
	DefaultShards              = 32
	// DefaultTombstonesPerBuffer sizes MaxTombstones relative to MaxInFlightMessages.
	DefaultTombstonesPerBuffer = 16
)

// Config configures an Assembler.
type Config struct {
	// MaxAssemblyAge is how long an incomplete buffer may live.
	MaxAssemblyAge time.Duration
	// MaxInFlightMessages bounds the number of open buffers.
	MaxInFlightMessages int
	// DuplicatePolicy selects repeated-index handling.
	DuplicatePolicy DuplicatePolicy
	// MaxMessageSize bounds total_size of any admitted message.
	MaxMessageSize uint64
	// SweepInterval is the background staleness sweep period.
	// Zero disables the background sweeper; call Sweep manually.
	SweepInterval time.Duration
	// Shards is the number of independently locked table partitions.
	Shards int
	// TombstoneTTL is how long finished message ids are remembered.
	// Defaults to MaxAssemblyAge.
	TombstoneTTL time.Duration
	// MaxTombstones bounds the remembered finished ids across all shards.
	// Defaults to DefaultTombstonesPerBuffer * MaxInFlightMessages.
	MaxTombstones int
	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default configuration with the background sweeper enabled.
func DefaultConfig() Config {
	return Config{
		MaxAssemblyAge:      DefaultMaxAssemblyAge,
		MaxInFlightMessages: DefaultMaxInFlightMessages,
		DuplicatePolicy:     IgnoreIfIdentical,
		MaxMessageSize:      DefaultMaxMessageSize,
		SweepInterval:       DefaultSweepInterval,
		Shards:              DefaultShards,
	}
}

// withDefaults fills zero fields. SweepInterval is left as given.
func (c Config) withDefaults() Config {
	if c.MaxAssemblyAge == 0 {
		c.MaxAssemblyAge = DefaultMaxAssemblyAge
	}
	if c.MaxInFlightMessages == 0 {
		c.MaxInFlightMessages = DefaultMaxInFlightMessages
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = IgnoreIfIdentical
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Shards == 0 {
		c.Shards = DefaultShards
	}
	if c.TombstoneTTL == 0 {
		c.TombstoneTTL = c.MaxAssemblyAge
	}
	if c.MaxTombstones == 0 {
		c.MaxTombstones = DefaultTombstonesPerBuffer * c.MaxInFlightMessages
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	var errs []error
	if c.MaxAssemblyAge < 0 {
		errs = append(errs, fmt.Errorf("max_assembly_age must be > 0, got %s", c.MaxAssemblyAge))
	}
	if c.MaxInFlightMessages < 0 {
		errs = append(errs, fmt.Errorf("max_in_flight_messages must be > 0, got %d", c.MaxInFlightMessages))
	}
	if c.Shards < 0 {
		errs = append(errs, fmt.Errorf("shards must be > 0, got %d", c.Shards))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("sweep_interval must be >= 0, got %s", c.SweepInterval))
	}
	if c.TombstoneTTL < 0 {
		errs = append(errs, fmt.Errorf("tombstone_ttl must be >= 0, got %s", c.TombstoneTTL))
	}
	if c.MaxTombstones < 0 {
		errs = append(errs, fmt.Errorf("max_tombstones must be >= 0, got %d", c.MaxTombstones))
	}
	if _, err := ParseDuplicatePolicy(string(c.DuplicatePolicy)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
