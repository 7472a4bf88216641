// Package lemonsqueezy is the boundary with the payment provider: the
// outbound license-activation call used to verify purchases, the inbound
// webhook event envelope, and the constant-time delivery-signature check.
// Everything provider-shaped stays in this package so the issuance service
// can be tested against a fake verifier.
package lemonsqueezy
