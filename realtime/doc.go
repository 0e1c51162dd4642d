// Package realtime gates socket connections with the same identity claims
// used by the HTTP surface.
//
// A connection starts Unauthenticated and becomes Authenticated when its
// handshake token verifies. Joining a room requires authorization:
//
//   - admin: a privileged role.
//   - user:{id}: the subject itself or a privileged role.
//   - ticket:{id}: a privileged role, or the ticket's customer or assigned
//     technician according to the [TicketDirectory]. Token roles alone are
//     not enough for non-privileged callers.
//
// Client-asserted "ticket-created" messages never carry a payload that is
// rebroadcast; the gate re-reads the ticket and broadcasts the stored record.
//
// Transport lives in realtime/ws; this package has no network code.
package realtime
