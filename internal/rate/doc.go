// Package rate implements the login brute-force gate as a sliding window read
// over the append-only authentication attempt log.
//
// # Window semantics
//
// Failures are counted over a trailing window ending at the current time.
// There is no counter state: nothing is incremented, reset, or expired by
// this package, so a successful login does not clear earlier failures and
// only the passage of time ages them out.
//
// # What this package must NOT do
//
//   - Write attempt rows (the credential flow records them).
//   - Verify CAPTCHA proofs (delegated to the caller's verifier).
package rate
