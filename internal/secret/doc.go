// Package secret holds the hashing and random-token primitives shared by the
// credential and second-factor flows.
//
// # What this package must NOT do
//
//   - Hash passwords. Low-entropy secrets go through the password package.
//   - Log, cache, or otherwise retain raw secrets.
package secret
