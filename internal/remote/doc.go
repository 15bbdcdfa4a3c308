// Package remote is the HTTP client shared by the transcription and feedback
// integrations. It adds bearer authentication, bounds concurrent requests
// with a semaphore, retries rate limiting, server errors and transport
// failures with capped exponential backoff, and reports every failure as a
// *ServiceError.
package remote
