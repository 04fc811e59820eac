// Package security provides validation, sanitization, and limits for the publisher package.
//
// This package includes:
//   - Validation of scheduled jobs and platform identifiers
//   - Error message sanitization before failure text is persisted
//   - Clamping functions to enforce safe limits on retries and concurrency
//
// Most users should import the root package github.com/jdziat/scheduled-publisher
// which re-exports these functions.
package security
