// Package app wires the license server together: configuration, logging,
// OpenTelemetry, the issuance service and the HTTP router. cmd binaries
// stay thin; everything testable lives here or below.
package app
