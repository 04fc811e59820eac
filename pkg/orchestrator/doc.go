// Package orchestrator executes one attempt of a scheduled job: it claims the
// job with an atomic PENDING to PROCESSING guard, publishes to every targeted
// platform concurrently, waits for all outcomes and writes the disposition.
//
// Per-platform failures are aggregated into the job's error message and never
// returned as errors. Only store failures escape Execute, leaving the job
// visibly in PROCESSING.
package orchestrator
