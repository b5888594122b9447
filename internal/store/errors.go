package store

import "errors"

// ErrPartitionExists reports that a partition with the same start boundary
// already exists. EnsurePartitions treats it as success (the boundary is the
// dedup key).
var ErrPartitionExists = errors.New("partition already exists")
