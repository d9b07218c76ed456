package objelect

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/objelect/objelect/types"
)

// Config holds the runtime configuration for an Elector.
//
// All duration fields unmarshal directly from YAML duration strings
// (e.g., "15s", "1m30s"). The Callbacks field cannot come from YAML and
// must be attached in code before calling New.
type Config struct {
	// ElectionKey is the store key the lease record lives under.
	// All electors contending for the same leadership role must use the
	// same key. Required.
	ElectionKey string `yaml:"electionKey"`

	// HolderIdentity uniquely identifies this candidate in the lease record.
	// Must differ between electors contending for the same key; two electors
	// sharing an identity will treat each other's lease as their own.
	//
	// Default: "" (auto-generated as hostname-<uuid8> by SetDefaults)
	HolderIdentity string `yaml:"holderIdentity"`

	// LeaseDuration is how long a lease is honored after its last renewal.
	// Non-holders wait until RenewTime + LeaseDuration before contending.
	// This is the worst-case failover time after a leader crash.
	// Recommended: 15 seconds.
	LeaseDuration time.Duration `yaml:"leaseDuration"`

	// RenewDeadline is how long the current holder keeps trying to renew
	// before it demotes itself. Must be less than LeaseDuration so a healthy
	// holder renews well before other candidates consider the lease expired.
	// Recommended: 10 seconds.
	RenewDeadline time.Duration `yaml:"renewDeadline"`

	// RetryPeriod is the pacing interval between store operations: the
	// polling cadence while acquiring and the renewal cadence while leading.
	// Must be less than RenewDeadline to allow multiple renewal attempts
	// per deadline window.
	// Recommended: 2 seconds.
	RetryPeriod time.Duration `yaml:"retryPeriod"`

	// MaxRetryBackoff caps the jittered backoff applied while the store is
	// unreachable. Healthy attempts are paced at RetryPeriod; consecutive
	// store failures grow the delay toward this cap.
	//
	// Default: 0 (auto-calculated as 5 * RetryPeriod)
	MaxRetryBackoff time.Duration `yaml:"maxRetryBackoff"`

	// OperationTimeout bounds each individual store call (read, create,
	// replace). Keep it below RenewDeadline so a single stuck call cannot
	// consume the entire renewal window.
	// Recommended: 5 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ReleaseOnCancel makes Stop attempt one best-effort conditional write
	// clearing HolderIdentity, so other candidates can take over immediately
	// instead of waiting out the lease. The write is skipped when the elector
	// is not leading and its failure is logged but never fatal.
	ReleaseOnCancel bool `yaml:"releaseOnCancel"`

	// Callbacks receive leadership lifecycle notifications. OnStartedLeading
	// and OnStoppedLeading are required; OnNewLeader is optional.
	// Not representable in YAML; attach in code before calling New.
	Callbacks types.Callbacks `yaml:"-"`
}

// DefaultConfig returns a Config with production defaults.
//
// Returns:
//   - Config: Configuration with default values (no identity, no callbacks)
func DefaultConfig() Config {
	return Config{
		LeaseDuration:    15 * time.Second,
		RenewDeadline:    10 * time.Second,
		RetryPeriod:      2 * time.Second,
		OperationTimeout: 5 * time.Second,
	}
}

// DefaultHolderIdentity generates a holder identity of the form
// hostname-<uuid8>. The random suffix keeps identities unique when several
// electors run on the same host.
//
// Returns:
//   - string: Generated holder identity
func DefaultHolderIdentity() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "objelect"
	}

	return hostname + "-" + uuid.NewString()[:8]
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.HolderIdentity == "" {
		cfg.HolderIdentity = DefaultHolderIdentity()
	}
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = defaults.LeaseDuration
	}
	if cfg.RenewDeadline == 0 {
		cfg.RenewDeadline = defaults.RenewDeadline
	}
	if cfg.RetryPeriod == 0 {
		cfg.RetryPeriod = defaults.RetryPeriod
	}
	if cfg.MaxRetryBackoff == 0 {
		// Default: 5x RetryPeriod (bounds failover delay after a store outage)
		cfg.MaxRetryBackoff = 5 * cfg.RetryPeriod
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
}

// Lease Timing Guide
// ==================
//
// The three core timings form a strict hierarchy:
//
//   RetryPeriod < RenewDeadline < LeaseDuration
//
// 1. LeaseDuration (Default: 15s)
//    Purpose: How long non-holders honor a lease after its last renewal
//    Expiry Impact: Another candidate may take over -> failover
//    Recommendation: 3-10x RetryPeriod; larger values tolerate more clock
//    drift between nodes at the cost of slower failover
//
// 2. RenewDeadline (Default: 10s)
//    Purpose: How long the holder retries renewal before self-demoting
//    Expiry Impact: Holder steps down even though the lease may still be
//    honored by others; this gap is what keeps two leaders from overlapping
//    Recommendation: 2/3 of LeaseDuration
//
// 3. RetryPeriod (Default: 2s)
//    Purpose: Pacing between store operations (poll + renew cadence)
//    Recommendation: Several attempts must fit into RenewDeadline
//
// Example Valid Configurations:
//
//   // Production (default)
//   LeaseDuration: 15s, RenewDeadline: 10s, RetryPeriod: 2s
//
//   // Fast failover (low-latency stores like NATS KV)
//   LeaseDuration: 5s, RenewDeadline: 3s, RetryPeriod: 1s
//
//   // Conservative (S3 or high-latency object stores)
//   LeaseDuration: 60s, RenewDeadline: 40s, RetryPeriod: 10s

// Validate checks configuration constraints and returns an error for invalid values.
//
// Hard Validation Rules:
//   - ElectionKey is non-empty
//   - HolderIdentity is non-empty (call SetDefaults first to auto-generate)
//   - LeaseDuration, RenewDeadline, RetryPeriod, OperationTimeout > 0
//   - RenewDeadline < LeaseDuration (holder demotes before others contend)
//   - RetryPeriod < RenewDeadline (multiple renewal attempts per window)
//   - MaxRetryBackoff >= RetryPeriod (cap cannot undercut the base cadence)
//   - OnStartedLeading and OnStoppedLeading callbacks are set
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	// Rule 1: ElectionKey presence
	if cfg.ElectionKey == "" {
		return ErrElectionKeyRequired
	}

	// Rule 2: HolderIdentity presence
	if cfg.HolderIdentity == "" {
		return fmt.Errorf("%w: HolderIdentity is empty (SetDefaults generates one)", ErrInvalidConfig)
	}

	// Rule 3: Positive durations
	if cfg.LeaseDuration <= 0 {
		return fmt.Errorf("%w: LeaseDuration must be > 0, got %v", ErrInvalidConfig, cfg.LeaseDuration)
	}
	if cfg.RenewDeadline <= 0 {
		return fmt.Errorf("%w: RenewDeadline must be > 0, got %v", ErrInvalidConfig, cfg.RenewDeadline)
	}
	if cfg.RetryPeriod <= 0 {
		return fmt.Errorf("%w: RetryPeriod must be > 0, got %v", ErrInvalidConfig, cfg.RetryPeriod)
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}

	// Rule 4: RenewDeadline vs LeaseDuration hierarchy
	if cfg.RenewDeadline >= cfg.LeaseDuration {
		return fmt.Errorf(
			"%w: RenewDeadline (%v) must be < LeaseDuration (%v) so the holder demotes before others contend",
			ErrInvalidConfig, cfg.RenewDeadline, cfg.LeaseDuration,
		)
	}

	// Rule 5: RetryPeriod vs RenewDeadline hierarchy
	if cfg.RetryPeriod >= cfg.RenewDeadline {
		return fmt.Errorf(
			"%w: RetryPeriod (%v) must be < RenewDeadline (%v) to allow renewal retries",
			ErrInvalidConfig, cfg.RetryPeriod, cfg.RenewDeadline,
		)
	}

	// Rule 6: MaxRetryBackoff sanity
	if cfg.MaxRetryBackoff != 0 && cfg.MaxRetryBackoff < cfg.RetryPeriod {
		return fmt.Errorf(
			"%w: MaxRetryBackoff (%v) must be >= RetryPeriod (%v)",
			ErrInvalidConfig, cfg.MaxRetryBackoff, cfg.RetryPeriod,
		)
	}

	// Rule 7: Required callbacks
	if err := cfg.Callbacks.Validate(); err != nil {
		return err
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in New() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// Warn if RenewDeadline leaves little margin before lease expiry
	if cfg.RenewDeadline > time.Duration(float64(cfg.LeaseDuration)*0.8) {
		logger.Warn(
			"RenewDeadline is close to LeaseDuration, leaving little takeover margin",
			"renewDeadline", cfg.RenewDeadline,
			"leaseDuration", cfg.LeaseDuration,
			"recommended", time.Duration(float64(cfg.LeaseDuration)*2/3),
		)
	}

	// Warn if RetryPeriod is very short
	if cfg.RetryPeriod < 500*time.Millisecond {
		logger.Warn(
			"RetryPeriod is very short, may cause excessive store traffic",
			"retryPeriod", cfg.RetryPeriod,
			"recommended", "1s or higher",
		)
	}

	// Warn if a single store call can consume the whole renewal window
	if cfg.OperationTimeout > cfg.RenewDeadline {
		logger.Warn(
			"OperationTimeout exceeds RenewDeadline, one stuck call can eat the renewal window",
			"operationTimeout", cfg.OperationTimeout,
			"renewDeadline", cfg.RenewDeadline,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-20x faster than production defaults to enable rapid
// iteration without sacrificing coverage. Use DefaultConfig() for production
// deployments. ElectionKey, HolderIdentity, and Callbacks must still be set
// by the test.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := objelect.TestConfig()
//	cfg.ElectionKey = "test-leader"
//	cfg.HolderIdentity = "node-1"
//	cfg.Callbacks = callbacks
//	elector, err := objelect.New(&cfg, store)
func TestConfig() Config {
	cfg := DefaultConfig()

	// Fast timings for test execution
	cfg.LeaseDuration = 2 * time.Second          // 7x faster
	cfg.RenewDeadline = 1 * time.Second          // 10x faster
	cfg.RetryPeriod = 100 * time.Millisecond     // 20x faster
	cfg.MaxRetryBackoff = 500 * time.Millisecond // 20x faster
	cfg.OperationTimeout = 1 * time.Second       // 5x faster

	return cfg
}

// LoadConfig parses a YAML configuration from r and applies defaults.
//
// Duration fields accept YAML duration strings such as "15s" or "1m30s".
// The returned config is not validated: Callbacks cannot be expressed in
// YAML, so attach them and pass the config to New, which validates.
//
// Parameters:
//   - r: Reader producing the YAML document
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Parse error, nil on success
func LoadConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	SetDefaults(&cfg)

	return cfg, nil
}

// LoadConfigFile loads a YAML configuration from the file at path.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: File or parse error, nil on success
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}
