package config

import "time"

// Default runtime limits and guardrails for the DataLoom server. These are
// conservative and can be overridden via dataloom.yaml or DATALOOM_* env
// variables; see Load.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 8

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxRowsPerOp    = 10_000
	DefaultPreviewRowLimit = 10
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultDatasetIdleTTL        = 30 * time.Minute
	DefaultDatasetCleanupPeriod  = 5 * time.Minute
)
