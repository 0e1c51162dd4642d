package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/permission"
	"github.com/google/uuid"
)

// ErrUnknownMessage is returned by Handle for unsupported message types.
var ErrUnknownMessage = errors.New("unknown realtime message")

// State is the authentication state of a connection.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Conn is one socket connection. Its claims are fixed at Connect.
type Conn struct {
	ID     string
	state  State
	claims deskauth.IdentityClaims
	out    Sender
}

func (c *Conn) State() State { return c.state }

// Claims returns the verified claims and whether the connection is authenticated.
func (c *Conn) Claims() (deskauth.IdentityClaims, bool) {
	return c.claims, c.state == Authenticated
}

// Gate authorizes room joins and revalidates client-asserted events.
type Gate struct {
	verifier Verifier
	tickets  TicketDirectory
	hub      *Hub
	policy   permission.Policy
	log      logging.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithPolicy sets the role policy used for room authorization.
func WithPolicy(p permission.Policy) Option { return func(g *Gate) { g.policy = p } }

// WithLogger sets the logger; the gate tags it with component=realtime.
func WithLogger(l logging.Logger) Option { return func(g *Gate) { g.log = l } }

// WithHub shares an existing hub instead of creating one.
func WithHub(h *Hub) Option { return func(g *Gate) { g.hub = h } }

// NewGate returns a gate that authenticates with verifier and resolves
// ticket ownership through tickets.
func NewGate(verifier Verifier, tickets TicketDirectory, opts ...Option) *Gate {
	g := &Gate{
		verifier: verifier,
		tickets:  tickets,
		hub:      NewHub(),
		policy:   permission.DefaultPolicy(),
		log:      logging.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "realtime")
	return g
}

// Hub returns the room registry the gate joins connections to.
func (g *Gate) Hub() *Hub { return g.hub }

// ExtractToken picks the bearer token from, in order, the explicit auth
// field, the Authorization header, and the named cookie.
func ExtractToken(authField, authorization string, cookies []*http.Cookie, cookieName string) string {
	if t := strings.TrimSpace(authField); t != "" {
		return strings.TrimPrefix(t, "Bearer ")
	}
	if strings.HasPrefix(authorization, "Bearer ") {
		if t := strings.TrimSpace(authorization[len("Bearer "):]); t != "" {
			return t
		}
	}
	if cookieName != "" {
		for _, c := range cookies {
			if c.Name == cookieName && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

// Connect registers a connection. A missing or invalid token leaves it
// Unauthenticated; the connection is not refused, only gated.
func (g *Gate) Connect(ctx context.Context, token string, out Sender) *Conn {
	c := &Conn{ID: uuid.NewString(), out: out}
	if token == "" || g.verifier == nil {
		return c
	}
	claims, err := g.verifier.Authenticate(ctx, token)
	if err != nil {
		g.log.Debug(ctx, "realtime handshake unauthenticated", "conn_id", c.ID)
		return c
	}
	c.claims = claims
	c.state = Authenticated
	return c
}

// Disconnect removes every room membership of c before returning.
func (g *Gate) Disconnect(c *Conn) int {
	if c == nil {
		return 0
	}
	return g.hub.removeAll(c)
}

// Handle processes one inbound message. Refusals send a Denied event to c
// and return deskauth.ErrDenied.
func (g *Gate) Handle(ctx context.Context, c *Conn, msg Message) error {
	switch msg.Type {
	case MsgJoinAdmin:
		return g.join(ctx, c, msg.Type, AdminRoom, g.canJoinAdmin(c))
	case MsgLeaveAdmin:
		g.hub.leave(c, AdminRoom)
		return nil
	case MsgJoinUser:
		if msg.UserID == "" {
			return g.deny(c, msg.Type, "", "missing user id")
		}
		return g.join(ctx, c, msg.Type, UserRoom(msg.UserID), g.canJoinUser(c, msg.UserID))
	case MsgLeaveUser:
		g.hub.leave(c, UserRoom(msg.UserID))
		return nil
	case MsgJoinTicket:
		if msg.TicketID == "" {
			return g.deny(c, msg.Type, "", "missing ticket id")
		}
		ok, err := g.canJoinTicket(ctx, c, msg.TicketID)
		if err != nil {
			g.log.Warn(ctx, "ticket lookup failed", "conn_id", c.ID, "ticket_id", msg.TicketID, "error", err)
		}
		return g.join(ctx, c, msg.Type, TicketRoom(msg.TicketID), ok)
	case MsgLeaveTicket:
		g.hub.leave(c, TicketRoom(msg.TicketID))
		return nil
	case MsgTicketCreated:
		return g.ticketCreated(ctx, c, msg.TicketID)
	default:
		_ = c.out.Send(Event{Type: EventDenied, Payload: DeniedPayload{Action: msg.Type, Reason: "unknown message"}})
		return ErrUnknownMessage
	}
}

func (g *Gate) join(ctx context.Context, c *Conn, action, room string, allowed bool) error {
	if !allowed {
		g.log.Info(ctx, "realtime join denied", "conn_id", c.ID, "room", room, "state", c.state.String())
		return g.deny(c, action, room, "forbidden")
	}
	g.hub.join(c, room)
	return nil
}

func (g *Gate) deny(c *Conn, action, room, reason string) error {
	_ = c.out.Send(Event{Type: EventDenied, Payload: DeniedPayload{Action: action, Room: room, Reason: reason}})
	return deskauth.ErrDenied
}

func (g *Gate) privileged(c *Conn) bool {
	return c.state == Authenticated && g.policy.IsPrivileged(c.claims.Roles)
}

func (g *Gate) canJoinAdmin(c *Conn) bool {
	return g.privileged(c)
}

func (g *Gate) canJoinUser(c *Conn, userID string) bool {
	if c.state != Authenticated {
		return false
	}
	return c.claims.Subject == userID || g.privileged(c)
}

// canJoinTicket performs the ownership lookup for non-privileged subjects.
func (g *Gate) canJoinTicket(ctx context.Context, c *Conn, ticketID string) (bool, error) {
	if c.state != Authenticated {
		return false, nil
	}
	if g.privileged(c) {
		return true, nil
	}
	if g.tickets == nil {
		return false, nil
	}
	t, err := g.tickets.LookupTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, deskauth.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return owns(c.claims.Subject, t), nil
}

// ticketCreated re-reads the ticket and rebroadcasts the stored record to
// the admin room and the customer's user room.
func (g *Gate) ticketCreated(ctx context.Context, c *Conn, ticketID string) error {
	if c.state != Authenticated {
		return g.deny(c, MsgTicketCreated, "", "unauthenticated")
	}
	if ticketID == "" || g.tickets == nil {
		return g.deny(c, MsgTicketCreated, "", "unknown ticket")
	}
	t, err := g.tickets.LookupTicket(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, deskauth.ErrRecordNotFound) {
			g.log.Warn(ctx, "ticket lookup failed", "conn_id", c.ID, "ticket_id", ticketID, "error", err)
		}
		return g.deny(c, MsgTicketCreated, "", "unknown ticket")
	}
	if !g.privileged(c) && !owns(c.claims.Subject, t) {
		return g.deny(c, MsgTicketCreated, TicketRoom(ticketID), "forbidden")
	}

	g.EmitToAdmin(EventTicketCreated, t)
	if t.CustomerID != "" {
		g.EmitToUser(t.CustomerID, EventTicketCreated, t)
	}
	return nil
}

func owns(subject string, t Ticket) bool {
	if subject == "" {
		return false
	}
	return t.CustomerID == subject || (t.AssignedToID != "" && t.AssignedToID == subject)
}

// EmitToTicket sends an event to ticket:{id}. Server-originated, not gated.
func (g *Gate) EmitToTicket(ticketID, eventType string, payload any) int {
	return g.hub.broadcast(TicketRoom(ticketID), Event{Type: eventType, Payload: payload})
}

// EmitToAdmin sends an event to the admin room and returns the delivery count.
func (g *Gate) EmitToAdmin(eventType string, payload any) int {
	return g.hub.broadcast(AdminRoom, Event{Type: eventType, Payload: payload})
}

// EmitToUser sends an event to user:{id} and returns the delivery count.
func (g *Gate) EmitToUser(userID, eventType string, payload any) int {
	return g.hub.broadcast(UserRoom(userID), Event{Type: eventType, Payload: payload})
}
