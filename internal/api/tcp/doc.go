// Package tcp serves the breaker control protocol over plain TCP.
// Each connection carries exactly one JSON envelope request and one
// JSON response; the dispatcher maps envelope types onto controller
// operations and translates domain errors into wire error codes.
package tcp
