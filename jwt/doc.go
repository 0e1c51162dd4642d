// Package jwt signs and verifies the short-lived identity claims handed out after
// authentication: subject, email, roles, and whether the second factor is satisfied.
//
// Verification never panics on hostile input and always reports failure through
// [ErrInvalid]; an expired but otherwise valid token is reported as [ErrExpired],
// which wraps [ErrInvalid].
package jwt
