// Package middleware exposes net/http guards built on deskauth.Engine.
//
// # Guards
//
//   - [Authenticate] verifies the bearer token (or access cookie) and puts
//     the claims in the request context.
//   - [RequireRoles] applies the role check, including the rule that the
//     admin role needs a completed second factor.
//   - [RequireSecondFactor] rejects claims without a completed second factor.
//   - [Guard] composes Authenticate and RequireRoles.
//
// Guards are plain func(http.Handler) http.Handler values and compose in the
// order they are applied.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// tokens or decide role membership itself.
package middleware
