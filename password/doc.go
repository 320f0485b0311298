// Package password hashes and verifies account passwords with Argon2id in
// PHC string format. The work factor is configurable; verification is
// constant-time and a malformed hash verifies as false rather than erroring,
// so nothing about stored material leaks through the error path.
package password
