package taskrt

import "github.com/joeycumines/taskrt/reactor"

// schedulerConfig is the plain struct of resolved settings, built up
// by applying a slice of Option values over a set of defaults.
type schedulerConfig struct {
	workers        int
	logger         Logger
	reactor        *reactor.Reactor
	disableReactor bool
}

// Option configures a Scheduler constructed by NewScheduler.
type Option interface {
	apply(*schedulerConfig)
}

type optionFunc func(*schedulerConfig)

func (f optionFunc) apply(cfg *schedulerConfig) { f(cfg) }

// WithWorkers sets the fixed size of the scheduler's worker pool.
// Panics if n is not positive. The default is 4.
func WithWorkers(n int) Option {
	if n <= 0 {
		panic("taskrt: WithWorkers requires a positive worker count")
	}
	return optionFunc(func(cfg *schedulerConfig) { cfg.workers = n })
}

// WithLogger sets the Logger the scheduler logs through, including
// reactor turn failures seen by its parked workers. A nil logger is
// equivalent to NoopLogger().
func WithLogger(l Logger) Option {
	if l == nil {
		l = NoopLogger()
	}
	return optionFunc(func(cfg *schedulerConfig) { cfg.logger = l })
}

// WithReactor supplies a pre-built reactor for the scheduler's worker
// pool to fall back to driving while idle, instead of letting
// NewScheduler create its own. Passing nil disables the reactor
// fallback entirely — workers then only ever park on the condition
// variable, which is enough for pure CPU/channel-bound workloads and
// is how the package's own task-layer tests exercise the scheduler
// without touching an OS poller.
func WithReactor(r *reactor.Reactor) Option {
	return optionFunc(func(cfg *schedulerConfig) {
		cfg.reactor = r
		cfg.disableReactor = r == nil
	})
}

func resolveOptions(opts []Option) *schedulerConfig {
	cfg := &schedulerConfig{
		workers: 4,
		logger:  NoopLogger(),
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(cfg)
	}
	return cfg
}
