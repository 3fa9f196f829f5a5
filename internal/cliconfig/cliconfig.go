// Package cliconfig loads the optional YAML tuning file for the multipart
// orchestrator (part size, per-part timeout, retry budget, rate limit).
// The s3-upload CLI applies MaxRetries and RateLimitBPS; PartSizeBytes,
// PartTimeout and MaxParallelJobs are parsed and defaulted but nothing in
// this repository reads them. The ApplyDefaults-then-override shape is
// grounded in the teacher's internal/config package, where every nested
// config struct backfills its own zero values rather than relying on a
// package-level default constant scattered across the codebase.
package cliconfig

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FairForge/s3rest/internal/s3err"
)

// Config is the optional tuning file's shape. Every field is optional;
// ApplyDefaults backfills zero values.
type Config struct {
	PartSizeBytes   int64    `yaml:"part_size_bytes"`
	PartTimeout     duration `yaml:"part_timeout"`
	MaxRetries      int      `yaml:"max_retries"`
	RateLimitBPS    int64    `yaml:"rate_limit_bytes_per_sec"`
	MaxParallelJobs int      `yaml:"max_parallel_jobs"`
}

// duration unmarshals YAML duration strings ("30s", "1m30s") the way
// time.ParseDuration understands them, since yaml.v3 has no built-in
// notion of time.Duration.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

const (
	// DefaultPartSizeBytes is S3's multipart part-size floor (spec §4.6.2).
	DefaultPartSizeBytes = 5 * 1024 * 1024
	// DefaultPartTimeout is PartTimeout's default. PartTimeout is not
	// applied to requests; s3http's own 300s client timeout bounds each one.
	DefaultPartTimeout = 60 * time.Second
	// DefaultMaxRetries is MaxRetries' default. s3-upload passes MaxRetries
	// to the orchestrator as its attempt limit per request, first attempt
	// included.
	DefaultMaxRetries = 3
	// DefaultMaxParallelJobs is MaxParallelJobs' default; nothing reads
	// MaxParallelJobs, and the worker count is the -j/--jobs value.
	DefaultMaxParallelJobs = 4
)

// ApplyDefaults backfills every zero-valued field with its package
// default. Called once after Load (or on a zero-value Config, when no
// tuning file was given).
func (c *Config) ApplyDefaults() {
	if c.PartSizeBytes <= 0 {
		c.PartSizeBytes = DefaultPartSizeBytes
	}
	if c.PartTimeout <= 0 {
		c.PartTimeout = duration(DefaultPartTimeout)
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxParallelJobs <= 0 {
		c.MaxParallelJobs = DefaultMaxParallelJobs
	}
	// RateLimitBPS <= 0 means "unlimited" and is intentionally left as-is.
}

// Load reads and parses a YAML tuning file, then applies defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the CLI's own -c/--config flag
	if err != nil {
		return cfg, s3err.New(s3err.IO, "cliconfig.Load", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, s3err.New(s3err.InvalidArgument, "cliconfig.Load", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a Config populated entirely with package defaults, for
// callers that pass no tuning file.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// PartTimeoutDuration returns PartTimeout as a plain time.Duration.
func (c Config) PartTimeoutDuration() time.Duration {
	return time.Duration(c.PartTimeout)
}
