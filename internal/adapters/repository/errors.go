package repository

import (
	"errors"
	"fmt"

	"github.com/okian/otv/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound     = model.ErrNotFound
	ErrEmptyStash   = errors.New("empty stash")
	ErrCorruptValue = errors.New("corrupt stored value")
)

func notFound(what, key string) error {
	return fmt.Errorf("%s %q: %w", what, key, ErrNotFound)
}
