package tracker

import (
	"runtime"

	"github.com/hupe1980/celltrie"
)

type options struct {
	concurrency int
	logger      *celltrie.Logger
	mapOpts     []celltrie.Option
}

// Option configures a Tracker.
type Option func(*options)

// WithConcurrency bounds the number of Subtree lookups a single query runs in
// parallel. The default is GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger configures logging of tracking events.
func WithLogger(logger *celltrie.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMapOptions passes options to the underlying celltrie.Map.
func WithMapOptions(opts ...celltrie.Option) Option {
	return func(o *options) {
		o.mapOpts = append(o.mapOpts, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{concurrency: runtime.GOMAXPROCS(0)}

	for _, fn := range optFns {
		fn(&o)
	}

	if o.concurrency < 1 {
		o.concurrency = 1
	}

	if o.logger == nil {
		o.logger = celltrie.NoopLogger()
	}

	return o
}
