// Package api exposes an engine over HTTP: launching pipelines, querying
// and cancelling jobs, and listing operators and pipelines.
//
// Successful responses wrap their payload in {"data": ...}; failures carry
// the error body of an errors.AppError.
package api
