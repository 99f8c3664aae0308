package store

import "time"

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used for the createdat and updatedat timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// timestamp returns the current time with the precision of a DATETIME(6) column.
func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}
