package wad

import (
	"log/slog"
	"runtime"
)

// Option configures an Archive.
type Option func(*config)

type config struct {
	logger           *slog.Logger
	strict           bool
	workers          int
	maxDecoderMemory uint64
	skipExisting     bool
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithLogger sets the logger for diagnostics and extraction progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStrict turns integrity and size mismatches into errors instead of
// diagnostics.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithWorkers sets the number of entries ExtractAll processes at once.
// Zero uses GOMAXPROCS; a negative value extracts serially.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithMaxDecoderMemory caps the decoded size of any entry and the window a
// zstd decoder may allocate. Zero leaves only the RawSize bound.
func WithMaxDecoderMemory(n uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = n
	}
}

// WithSkipExisting makes extraction leave files that already exist in the
// destination untouched. Each skipped entry is logged at info level.
// By default, existing files are replaced.
func WithSkipExisting(skip bool) Option {
	return func(c *config) {
		c.skipExisting = skip
	}
}

func (c *config) workerCount() int {
	switch {
	case c.workers < 0:
		return 1
	case c.workers == 0:
		return runtime.GOMAXPROCS(0)
	default:
		return c.workers
	}
}
