package storage

import "errors"

var (
	ErrUnreachable         = errors.New("qdrant server unreachable")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrChunkVectorMismatch = errors.New("chunk count does not match vector count")
)
