// Package services implements the business logic layer of the license
// server. It sits between the HTTP handlers and the crypto/provider
// packages, ensuring issuance rules live in one place and stay testable.
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate issuance rules
//
// The package provides two services:
//
//	- IssuanceService: verifies purchases and issues signed license files
//	- HealthService: reports process health and issuance readiness
//
// Services return the sentinel errors from internal/errors; handlers
// translate them into RFC 7807 responses and never inspect messages.
package services
