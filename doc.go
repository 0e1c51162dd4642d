// Package deskauth is the identity, session, and authorization core of the
// support desk backend: credential login with a CAPTCHA gate, access and
// refresh tokens, single-use email-verification and password-reset tokens,
// TOTP enrollment with recovery codes, and role authorization with a
// second-factor requirement for administrative actions.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Persistence is consumed through [UserStore],
// [AttemptStore], and [TokenStore]; implementations live under store/.
//
// # Architecture boundaries
//
// deskauth is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces, and value types. Primitives (hashing, TOTP, sealing,
// the attempt-window limiter, audit dispatch) live under internal/.
//
// # What this package must NOT do
//
//   - Log or persist raw passwords, refresh tokens, single-use tokens, or recovery codes.
//   - Report infrastructure failures as domain errors; they wrap [ErrUnavailable].
//   - Import transport packages (httpapi, realtime, middleware).
package deskauth
