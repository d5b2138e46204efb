package kvdb

import (
	"log/slog"
	"time"
)

const (
	GCReclaimIntervalDefault = time.Minute * 5
	GCDiscardRatioDefault    = 0.5
	CacheSizeDefault         = 1024
)

// config contains the handle parameters that are not part of Conf.
type config struct {
	CacheSize          int
	StrictTransactions bool
	Logger             *slog.Logger
	GCReclaimInterval  time.Duration
	GCDiscardRatio     float64
}

func defaultConfig() *config {
	return &config{
		CacheSize:         CacheSizeDefault,
		GCReclaimInterval: GCReclaimIntervalDefault,
		GCDiscardRatio:    GCDiscardRatioDefault,
	}
}

func (c *config) applyOptions(opts []Option) (*config, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// Option is a function that takes a config struct and modifies it
type Option func(c *config) error

// CacheSize sets the number of records kept in the read cache. Zero
// disables caching.
func CacheSize(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return confError("negative cache size %d", n)
		}
		c.CacheSize = n
		return nil
	}
}

// StrictTransactions makes mutations outside a transaction fail with
// ErrNoTransaction instead of running in their own transaction.
func StrictTransactions(enable bool) Option {
	return func(c *config) error {
		c.StrictTransactions = enable
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) error {
		c.Logger = logger
		return nil
	}
}

// GCReclaimInterval sets how often badger value log garbage collection runs.
func GCReclaimInterval(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return confError("gc interval must be positive, got %s", d)
		}
		c.GCReclaimInterval = d
		return nil
	}
}

func GCDiscardRatio(ratio float64) Option {
	return func(c *config) error {
		if ratio <= 0 || ratio >= 1 {
			return confError("gc discard ratio must be in (0, 1), got %g", ratio)
		}
		c.GCDiscardRatio = ratio
		return nil
	}
}
