package repository

import "github.com/okian/otv/pkg/logger"

const defaultKeyPrefix = "otv"

// Option applies a configuration option to the RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix namespaces every key the store writes.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *RedisStore) {
		if l != nil {
			s.log = l
		}
	}
}
