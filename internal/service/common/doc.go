// Package common holds helpers shared by several services.
//
// It provides a TCP client for the breaker control protocol with per-call
// timeouts and utilities to detect the current system actor
// (hostname/username) for authorization and audit purposes.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
