package celltrie

import (
	"log/slog"

	"github.com/hupe1980/celltrie/codec"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	equal            any
}

func applyOptions(optFns []Option) *options {
	o := &options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		fn(o)
	}

	return o
}

// Option configures a Map.
type Option func(*options)

// WithCodec configures the codec used to persist owners and values.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}

		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for map operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &celltrie.BasicMetricsCollector{}
//	m := celltrie.New[string, int](celltrie.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
//	fmt.Printf("puts: %d, restarts: %d\n", stats.PutCount, stats.Restarts)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}

		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for structural events such as
// snapshots, clears and persistence. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}

		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithValueEqual configures the equality used by CompareAndSwap and
// CompareAndRemove. The default is reflect.DeepEqual.
//
// V must match the value type of the map; New panics otherwise.
func WithValueEqual[V any](eq func(a, b V) bool) Option {
	return func(o *options) {
		o.equal = eq
	}
}
