// Package utils provides general-purpose helpers used across pimsync:
// content hashing, UUID generation, JSON HTTP responses and the shared
// resty-based HTTP client.
package utils
