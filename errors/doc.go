// Package errors provides the unified error type used across mediaflow.
//
// Configuration problems found while building a pipeline graph, unknown jobs
// and pipelines, storage failures and external feature-service failures are
// all reported as *AppError values carrying a machine-readable code, a
// retryable flag and an HTTP status for the API layer. Package-level sentinel
// errors stay reachable through Unwrap so callers can use errors.Is.
package errors
