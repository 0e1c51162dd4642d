// Package postgres implements every deskauth store interface and the
// realtime ticket directory on PostgreSQL through database/sql and the pgx
// driver. Schema migrations are embedded and applied with goose.
//
// Single-use tokens, recovery codes, and refresh-token revocation are
// conditional UPDATE statements (WHERE used_at IS NULL / revoked_at IS NULL),
// so concurrent redemptions race inside PostgreSQL and at most one wins.
package postgres
