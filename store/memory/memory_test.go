package memory

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/realtime"
	"github.com/MrEthical07/deskauth/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStore(t *testing.T) {
	storetest.RunUserStore(t, func(*testing.T) deskauth.UserStore { return New() })
}

func TestAttemptStore(t *testing.T) {
	storetest.RunAttemptStore(t, func(*testing.T) deskauth.AttemptStore { return New() })
}

func TestTokenStore(t *testing.T) {
	storetest.RunTokenStore(t, func(*testing.T) deskauth.TokenStore { return New() })
}

func TestReturnedUsersAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, deskauth.CreateUserInput{ID: "u1", Email: "a@example.com", Roles: []string{"customer"}, CreatedAt: time.Now()})
	require.NoError(t, err)
	u.Roles[0] = "admin"

	got, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer"}, got.Roles)
}

func TestAccountTooling(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateUser(ctx, deskauth.CreateUserInput{ID: "u1", Email: "a@example.com", Active: true})
	require.NoError(t, err)

	require.NoError(t, s.SetActive("u1", false))
	require.NoError(t, s.SetRoles("u1", "technician"))
	require.ErrorIs(t, s.SetActive("missing", true), deskauth.ErrRecordNotFound)

	got, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, []string{"technician"}, got.Roles)
}

func TestTicketDirectory(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.LookupTicket(ctx, "7")
	require.ErrorIs(t, err, deskauth.ErrRecordNotFound)

	s.PutTicket(realtime.Ticket{ID: "7", CustomerID: "c1", AssignedToID: "t1"})
	got, err := s.LookupTicket(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.AssignedToID)

	s.DeleteTicket("7")
	_, err = s.LookupTicket(ctx, "7")
	require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
}
