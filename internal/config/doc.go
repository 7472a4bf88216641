// Package config loads and validates the license service configuration.
//
// Configuration comes from environment variables under the UG_ prefix with an
// optional YAML overlay for non-secret settings; environment values always
// win. Cryptographic material (derivation secret, signing key, webhook
// secret, provider API keys) is environment-only and checked per code path:
// a missing secret surfaces as a server-configuration error on the path that
// needs it, never as a silent insecure default.
package config
