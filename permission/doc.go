// Package permission provides role constants, role sets, and the authorization
// decision used by HTTP guards and the realtime gate.
//
// # Decision rule
//
// An empty requirement always permits. Otherwise the caller's roles must
// intersect the required roles, and when the administrative role is among
// the requirements the caller must also have satisfied a second factor.
//
// # What this package must NOT do
//
//   - Access storage or the network.
//   - Import deskauth, jwt, or any transport package.
package permission
