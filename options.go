package objelect

// Option configures an Elector with optional dependencies.
type Option func(*electorOptions)

// electorOptions holds optional Elector configuration.
type electorOptions struct {
	hooks          *Hooks
	metrics        MetricsCollector
	logger         Logger
	backoffSeed    int64
	backoffSeedSet bool
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	elector, err := objelect.New(&cfg, store, objelect.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *electorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer)
//	elector, err := objelect.New(&cfg, store, objelect.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *electorOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets lifecycle event hooks.
//
// Hooks are an async observation channel, dispatched on background
// goroutines; hook errors are logged, never propagated. Use Callbacks for
// the synchronous leadership contract.
//
// Parameters:
//   - hooks: Hooks structure with observer functions
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	hooks := &objelect.Hooks{
//	    OnStateChanged: func(ctx context.Context, from, to objelect.State) error {
//	        log.Printf("election state %s -> %s", from, to)
//	        return nil
//	    },
//	}
//	elector, err := objelect.New(&cfg, store, objelect.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *electorOptions) {
		o.hooks = hooks
	}
}

// WithBackoffSeed fixes the seed of the jittered backoff stream.
//
// By default each elector derives its seed from its holder identity, giving
// every candidate a distinct but reproducible jitter sequence. Tests that
// need bit-identical timing across runs can pin the seed explicitly.
//
// Parameters:
//   - seed: Seed for the backoff random source (0 selects the global source)
//
// Returns:
//   - Option: Functional option for New
func WithBackoffSeed(seed int64) Option {
	return func(o *electorOptions) {
		o.backoffSeed = seed
		o.backoffSeedSet = true
	}
}
