package domain

import "errors"

var (
	ErrSnapshotNotFound = errors.New("metrics snapshot not found")
	ErrQueueEmpty       = errors.New("analytics queue empty")
)
