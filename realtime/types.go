package realtime

import (
	"context"
	"time"

	"github.com/MrEthical07/deskauth"
)

// Ticket is the ownership view of a support ticket.
type Ticket struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	AssignedToID string    `json:"assignedToId,omitempty"`
	Title        string    `json:"title,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TicketDirectory resolves ticket ownership. Absent tickets return
// deskauth.ErrRecordNotFound.
type TicketDirectory interface {
	LookupTicket(ctx context.Context, ticketID string) (Ticket, error)
}

// Verifier turns a bearer token into claims.
type Verifier interface {
	Authenticate(ctx context.Context, token string) (deskauth.IdentityClaims, error)
}

// Sender delivers an outbound event to one connection.
type Sender interface {
	Send(Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Event) error

func (f SenderFunc) Send(ev Event) error { return f(ev) }

// Inbound message types.
const (
	MsgJoinTicket    = "join-ticket"
	MsgLeaveTicket   = "leave-ticket"
	MsgJoinAdmin     = "join-admin"
	MsgLeaveAdmin    = "leave-admin"
	MsgJoinUser      = "join-user"
	MsgLeaveUser     = "leave-user"
	MsgTicketCreated = "ticket-created"
)

// Outbound event types.
const (
	EventTicketMessage = "ticket:message"
	EventTicketUpdate  = "ticket:update"
	EventTicketSession = "ticket:session"
	EventTicketCreated = "ticket:created"
	EventTicketDeleted = "ticket:deleted"
	EventNotification  = "notification:new"
	EventDenied        = "denied"
)

// Message is a client-to-server frame.
type Message struct {
	Type     string `json:"type"`
	TicketID string `json:"ticketId,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// Event is a server-to-client frame.
type Event struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// DeniedPayload explains a refused action.
type DeniedPayload struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
	Reason string `json:"reason"`
}

// Room names.
const AdminRoom = "admin"

func TicketRoom(ticketID string) string { return "ticket:" + ticketID }
func UserRoom(userID string) string     { return "user:" + userID }
