// Package http implements the HTTP handlers of the license server. It is
// a thin layer between transport and the issuance service: handlers parse
// and validate requests, call the service, and translate sentinel errors
// into RFC 7807 problem responses.
//
// A request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → IssuanceService
//	                                             ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// No business logic lives here. In particular, handlers never decide what
// a license contains; they only shape the response (download attachment
// for manual activation, JSON acknowledgment for webhooks).
package http
