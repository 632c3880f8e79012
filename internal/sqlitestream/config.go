package sqlitestream

// Config holds the tunables for a single streaming pass. Built with
// functional options, following the teacher's DatabaseOption pattern
// (app/config.go) rather than a struct literal, so new knobs can be
// added without breaking callers.
type Config struct {
	// BufferSize bounds the number of page bytes the router may hold in
	// its pending-pages map before failing with ErrBufferExceeded. Zero
	// means unbounded.
	BufferSize int

	// WalkFreelist controls how strictly freelist trunk pages are
	// checked: when true, a trunk whose leaf count does not fit in the
	// page fails with ErrMalformedRecord; when false, that count is
	// clamped to the number of leaf slots the page holds. Either way the
	// trunk chain is followed and every listed leaf page is dispatched to
	// a processor — skipping registration entirely would violate the
	// end-of-stream invariant.
	WalkFreelist bool

	// ColumnCacheSize bounds the number of distinct CREATE TABLE strings
	// whose parsed column descriptors are memoized. Zero means unbounded,
	// matching BufferSize's convention.
	ColumnCacheSize int
}

// Option configures a Config.
type Option func(*Config)

// WithBufferSize sets the maximum bytes the page-buffer map may hold
// before the stream fails with ErrBufferExceeded.
func WithBufferSize(bytes int) Option {
	return func(c *Config) {
		c.BufferSize = bytes
	}
}

// WithFreelistWalk toggles strict checking of freelist trunk leaf counts
// (see Config.WalkFreelist).
func WithFreelistWalk(enabled bool) Option {
	return func(c *Config) {
		c.WalkFreelist = enabled
	}
}

// WithColumnCacheSize bounds the DDL-parse memoization cache.
func WithColumnCacheSize(n int) Option {
	return func(c *Config) {
		c.ColumnCacheSize = n
	}
}

// DefaultConfig returns the default configuration: no buffer cap, strict
// freelist trunk checking, and a small column cache.
func DefaultConfig() Config {
	return Config{
		BufferSize:      0,
		WalkFreelist:    true,
		ColumnCacheSize: 32,
	}
}

func newConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
