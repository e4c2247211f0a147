package storage

import "errors"

// Common storage errors
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
