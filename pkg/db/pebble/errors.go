package pebble

import "errors"

var (
	ErrClosed          = errors.New("pebble: database is closed")
	ErrNotFound        = errors.New("pebble: key not found")
	ErrBatchDone       = errors.New("pebble: batch already committed or closed")
	ErrIteratorInvalid = errors.New("pebble: iterator is not positioned")
)

const (
	ErrInIteratorCreation = "pebble: failed to create iterator: %w"
	ErrIteratorValue      = "pebble: failed to read iterator value: %w"
)
