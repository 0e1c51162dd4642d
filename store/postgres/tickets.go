package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/realtime"
)

// LookupTicket reads the ownership columns of a ticket.
func (s *Store) LookupTicket(ctx context.Context, ticketID string) (realtime.Ticket, error) {
	query :=
		`SELECT id, customer_id, assigned_to_id, title, status, created_at FROM tickets
		 WHERE id = $1`

	var (
		t        realtime.Ticket
		assigned sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, ticketID).
		Scan(&t.ID, &t.CustomerID, &assigned, &t.Title, &t.Status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return realtime.Ticket{}, deskauth.ErrRecordNotFound
		}
		return realtime.Ticket{}, dbError(err)
	}
	t.AssignedToID = assigned.String
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
