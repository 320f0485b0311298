// Package jwt issues and verifies the signed, time-bounded session tokens
// returned by the identity engine. The only mandated claims are the account
// id (subject) and an expiry; tokens are verifiable independently of the
// engine with [Manager.Verify].
package jwt
