// Package goIdentity provides an account-identity engine: registration, email
// verification, password and passwordless (magic-link) login, social-provider
// linking, password reset, and TOTP-based two-factor authentication.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config],
// the [Account] aggregate, and the [AccountRepository] and
// [NotificationGateway] integration interfaces. Crypto concerns live in the
// jwt and password subpackages; reference repository implementations live in
// memstore and redistore.
//
// # What this package must NOT do
//
//   - Mandate a persistence engine. The engine only ever talks to
//     [AccountRepository]; uniqueness is ultimately enforced by the store.
//   - Block an operation on notification delivery. Emails are dispatched
//     asynchronously with bounded retry, and their failure is logged, never
//     returned.
//   - Leak credentials. Every result that crosses the engine boundary is a
//     sanitized [PublicAccount] without password hash, tokens, or TOTP secret.
//
// # Error contract
//
// Business-rule violations are [*ClientError] values carrying a stable
// machine-readable [Code] and an HTTP status class; they are final and must
// not be retried. Infrastructure faults (store unreachable, signing key
// unavailable) are wrapped in [*RetryableError] so callers can apply backoff.
// Use [IsRetryable] to tell the two apart.
package goIdentity
