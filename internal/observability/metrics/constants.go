// Package metrics provides Prometheus collectors for speciestools.
package metrics

// Operation label values.
const (
	OpPreview = "preview"
	OpDelete  = "delete"
	OpSummary = "summary"
	OpToggle  = "toggle"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Stage label values for containment violations.
const (
	StageCollect = "collect"
	StageDelete  = "delete"
	StagePrune   = "prune"
)

// Kind label values for file deletion errors.
const (
	KindFile    = "file"
	KindSidecar = "sidecar"
)

// Histogram bucket parameters.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~10s range).
	BucketStart10ms = 0.01
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)
