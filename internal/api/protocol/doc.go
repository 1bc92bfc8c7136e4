// Package protocol defines the JSON wire format spoken between the breaker
// binaries: a typed Message envelope, the request and response payloads, and
// a stable error-code mapping so sentinel errors survive the round trip.
//
// Every connection carries one request and one response.
package protocol
