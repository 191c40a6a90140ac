package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/stitch/dispatch"
	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/transport"
)

// Defaults applied by WithDefaults.
const (
	DefaultListen         = "0.0.0.0:7400"
	DefaultJournalPolicy  = "buffered"
	DefaultJournalBackend = "fs"
	DefaultJournalPath    = "./stitch-journal"

	DefaultJournalFlushInterval = time.Second
)

// Config represents a stitch.yaml configuration file.
// All values are optional; CLI flags override them.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Listen     string           `yaml:"listen"`
	Readers    int              `yaml:"readers"`
	LogLevel   string           `yaml:"log_level"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Journal    JournalConfig    `yaml:"journal"`
	Adapter    AdapterConfig    `yaml:"adapter"`
}

// NodeConfig identifies this process in logs, events and notifications.
type NodeConfig struct {
	ID      string `yaml:"id"`
	Cluster string `yaml:"cluster"`
}

// ReassemblyConfig mirrors reassembly.Config.
type ReassemblyConfig struct {
	MaxAssemblyAge       Duration `yaml:"max_assembly_age"`
	MaxInFlightMessages  int      `yaml:"max_in_flight_messages"`
	DuplicateChunkPolicy string   `yaml:"duplicate_chunk_policy"`
	MaxMessageSize       uint64   `yaml:"max_message_size"`
	SweepInterval        Duration `yaml:"sweep_interval"`
	Shards               int      `yaml:"shards"`
	TombstoneTTL         Duration `yaml:"tombstone_ttl"`
	MaxTombstones        int      `yaml:"max_tombstones"`
}

// DispatchConfig mirrors dispatch.Config.
type DispatchConfig struct {
	Workers        int      `yaml:"workers"`
	QueueSize      int      `yaml:"queue_size"`
	HandlerTimeout Duration `yaml:"handler_timeout"`
}

// JournalConfig selects the write policy and storage backend for the
// event journal.
type JournalConfig struct {
	Dataset         string   `yaml:"dataset"`
	Policy          string   `yaml:"policy"`
	BufferEvents    int      `yaml:"buffer_events"`
	BufferBytes     int64    `yaml:"buffer_bytes"`
	FlushCount      int      `yaml:"flush_count"`
	FlushInterval   Duration `yaml:"flush_interval"`
	QueueSize       int      `yaml:"queue_size"`
	Backend         string   `yaml:"backend"`
	Path            string   `yaml:"path"`
	Region          string   `yaml:"region"`
	Endpoint        string   `yaml:"endpoint"`
	S3PathStyle     bool     `yaml:"s3_path_style"`
	ArchivePayloads bool     `yaml:"archive_payloads"`
}

// AdapterConfig configures the optional completion notifier.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// WithDefaults returns a copy with unset top-level values filled in.
// Reassembly and dispatch defaults are left to their packages.
func (c Config) WithDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Readers == 0 {
		c.Readers = transport.DefaultReaders
	}
	if c.Journal.Policy == "" {
		c.Journal.Policy = DefaultJournalPolicy
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = DefaultJournalBackend
	}
	if c.Journal.FlushInterval.Duration == 0 {
		c.Journal.FlushInterval.Duration = DefaultJournalFlushInterval
	}
	if c.Journal.Path == "" && c.Journal.Backend == "fs" {
		c.Journal.Path = DefaultJournalPath
	}
	return c
}

// Validate checks values that can be judged without touching the network.
func (c Config) Validate() error {
	var errs []error
	if c.Readers < 0 {
		errs = append(errs, fmt.Errorf("readers must be >= 0, got %d", c.Readers))
	}
	if _, err := reassembly.ParseDuplicatePolicy(c.Reassembly.DuplicateChunkPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Reassembly.MaxTombstones < 0 {
		errs = append(errs, fmt.Errorf("reassembly.max_tombstones must be >= 0, got %d", c.Reassembly.MaxTombstones))
	}
	switch c.Journal.Policy {
	case "", "strict", "buffered", "streaming", "noop":
	default:
		errs = append(errs, fmt.Errorf("journal.policy %q must be strict, buffered, streaming, or noop", c.Journal.Policy))
	}
	switch c.Journal.Backend {
	case "", "fs", "memory":
	case "s3":
		if c.Journal.Path == "" {
			errs = append(errs, errors.New("journal.path (bucket/prefix) is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.backend %q must be fs, s3, or memory", c.Journal.Backend))
	}
	switch c.Adapter.Type {
	case "":
	case "webhook", "redis":
		if c.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for %s adapter", c.Adapter.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type %q must be webhook or redis", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	return errors.Join(errs...)
}

// AssemblerConfig converts the reassembly block. The background sweeper is
// enabled at reassembly.DefaultSweepInterval unless overridden.
func (c Config) AssemblerConfig() (reassembly.Config, error) {
	policy, err := reassembly.ParseDuplicatePolicy(c.Reassembly.DuplicateChunkPolicy)
	if err != nil {
		return reassembly.Config{}, err
	}
	cfg := reassembly.DefaultConfig()
	cfg.DuplicatePolicy = policy
	if d := c.Reassembly.MaxAssemblyAge.Duration; d != 0 {
		cfg.MaxAssemblyAge = d
	}
	if n := c.Reassembly.MaxInFlightMessages; n != 0 {
		cfg.MaxInFlightMessages = n
	}
	if n := c.Reassembly.MaxMessageSize; n != 0 {
		cfg.MaxMessageSize = n
	}
	if d := c.Reassembly.SweepInterval.Duration; d != 0 {
		cfg.SweepInterval = d
	}
	if n := c.Reassembly.Shards; n != 0 {
		cfg.Shards = n
	}
	cfg.TombstoneTTL = c.Reassembly.TombstoneTTL.Duration
	cfg.MaxTombstones = c.Reassembly.MaxTombstones
	return cfg, nil
}

// DispatcherConfig converts the dispatch block. Logger and collector are
// attached by the caller.
func (c Config) DispatcherConfig() dispatch.Config {
	return dispatch.Config{
		Workers:        c.Dispatch.Workers,
		QueueSize:      c.Dispatch.QueueSize,
		HandlerTimeout: c.Dispatch.HandlerTimeout.Duration,
	}
}
