package repository

// Option applies a configuration option to a store.
type Option func(*settings)

type settings struct {
	keyPrefix  string
	maxRetries int
}

func newSettings(opts []Option) settings {
	s := settings{keyPrefix: "footprint:", maxRetries: 10}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithKeyPrefix namespaces every Redis key.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		s.keyPrefix = prefix
	}
}

// WithMaxRetries bounds optimistic transaction retries.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}
