// Package memory is an in-process implementation of every deskauth store
// interface plus the realtime ticket directory. It is used by tests and by
// deskauthd when no database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/realtime"
)

type recoveryCode struct {
	hash   string
	usedAt *time.Time
}

// Store keeps all state behind a single mutex, which gives every
// check-and-mark operation the atomicity the engine relies on.
type Store struct {
	mu sync.Mutex

	users       map[string]deskauth.User
	emailIndex  map[string]string
	attempts    []deskauth.AuthAttempt
	refresh     map[string]deskauth.RefreshToken
	singleUse   map[string]deskauth.SingleUseToken
	totpSecrets map[string]deskauth.TOTPSecret
	recovery    map[string][]recoveryCode
	tickets     map[string]realtime.Ticket
}

var (
	_ deskauth.Store           = (*Store)(nil)
	_ realtime.TicketDirectory = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:       make(map[string]deskauth.User),
		emailIndex:  make(map[string]string),
		refresh:     make(map[string]deskauth.RefreshToken),
		singleUse:   make(map[string]deskauth.SingleUseToken),
		totpSecrets: make(map[string]deskauth.TOTPSecret),
		recovery:    make(map[string][]recoveryCode),
		tickets:     make(map[string]realtime.Ticket),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(u deskauth.User) deskauth.User {
	u.Roles = append([]string(nil), u.Roles...)
	if u.EmailVerifiedAt != nil {
		t := *u.EmailVerifiedAt
		u.EmailVerifiedAt = &t
	}
	return u
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, in deskauth.CreateUserInput) (deskauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(in.Email)
	if _, ok := s.emailIndex[key]; ok {
		return deskauth.User{}, deskauth.ErrRecordExists
	}
	if _, ok := s.users[in.ID]; ok {
		return deskauth.User{}, deskauth.ErrRecordExists
	}
	u := deskauth.User{
		ID:              in.ID,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		Active:          in.Active,
		EmailVerifiedAt: in.EmailVerifiedAt,
		Roles:           in.Roles,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Phone:           in.Phone,
		CreatedAt:       in.CreatedAt,
	}
	u = cloneUser(u)
	s.users[u.ID] = u
	s.emailIndex[key] = u.ID
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (deskauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emailIndex[emailKey(email)]
	if !ok {
		return deskauth.User{}, deskauth.ErrRecordNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (deskauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return deskauth.User{}, deskauth.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return deskauth.ErrRecordNotFound
	}
	u.PasswordHash = hash
	s.users[userID] = u
	return nil
}

func (s *Store) MarkEmailVerified(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return deskauth.ErrRecordNotFound
	}
	if u.EmailVerifiedAt == nil {
		t := at
		u.EmailVerifiedAt = &t
		s.users[userID] = u
	}
	return nil
}

// SetActive toggles the active flag. Account status changes are owned by
// other subsystems; this exists for tooling and tests.
func (s *Store) SetActive(userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return deskauth.ErrRecordNotFound
	}
	u.Active = active
	s.users[userID] = u
	return nil
}

// SetRoles replaces the roles of userID.
func (s *Store) SetRoles(userID string, roles ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return deskauth.ErrRecordNotFound
	}
	u.Roles = append([]string(nil), roles...)
	s.users[userID] = u
	return nil
}

// ---- attempts ----

func (s *Store) RecordAttempt(_ context.Context, a deskauth.AuthAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *Store) CountFailuresSince(_ context.Context, email string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(email)
	n := 0
	for _, a := range s.attempts {
		if !a.Success && emailKey(a.Email) == key && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListAttempts(_ context.Context, userID string, limit int) ([]deskauth.AuthAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []deskauth.AuthAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if a := s.attempts[i]; a.UserID == userID {
			out = append(out, a)
		}
	}
	return newestFirst(out, limit), nil
}

func (s *Store) ListAttemptsByEmail(_ context.Context, email string, limit int) ([]deskauth.AuthAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(email)
	var out []deskauth.AuthAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if a := s.attempts[i]; emailKey(a.Email) == key {
			out = append(out, a)
		}
	}
	return newestFirst(out, limit), nil
}

func newestFirst(out []deskauth.AuthAttempt, limit int) []deskauth.AuthAttempt {
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ---- refresh tokens ----

func (s *Store) CreateRefreshToken(_ context.Context, t deskauth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refresh[t.TokenHash]; ok {
		return deskauth.ErrRecordExists
	}
	s.refresh[t.TokenHash] = t
	return nil
}

func (s *Store) GetLiveRefreshToken(_ context.Context, hash string, now time.Time) (deskauth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refresh[hash]
	if !ok || !t.Live(now) {
		return deskauth.RefreshToken{}, deskauth.ErrRecordNotFound
	}
	return t, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, hash string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.refresh[hash]
	if !ok || t.RevokedAt != nil {
		return 0, nil
	}
	at := now
	t.RevokedAt = &at
	s.refresh[hash] = t
	return 1, nil
}

func (s *Store) RevokeUserRefreshTokens(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for hash, t := range s.refresh {
		if t.UserID != userID || t.RevokedAt != nil {
			continue
		}
		at := now
		t.RevokedAt = &at
		s.refresh[hash] = t
		n++
	}
	return n, nil
}

// ---- single-use tokens ----

func (s *Store) CreateSingleUseToken(_ context.Context, t deskauth.SingleUseToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.singleUse[t.TokenHash]; ok {
		return deskauth.ErrRecordExists
	}
	s.singleUse[t.TokenHash] = t
	return nil
}

func (s *Store) ConsumeSingleUseToken(_ context.Context, kind deskauth.TokenKind, hash string, now time.Time) (deskauth.SingleUseToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.singleUse[hash]
	if !ok || t.Kind != kind || !t.Redeemable(now) {
		return deskauth.SingleUseToken{}, deskauth.ErrRecordNotFound
	}
	at := now
	t.UsedAt = &at
	s.singleUse[hash] = t
	return t, nil
}

// ---- second factor ----

func (s *Store) SaveTOTPSecret(_ context.Context, sec deskauth.TOTPSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totpSecrets[sec.UserID] = sec
	return nil
}

func (s *Store) GetTOTPSecret(_ context.Context, userID string) (deskauth.TOTPSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.totpSecrets[userID]
	if !ok {
		return deskauth.TOTPSecret{}, deskauth.ErrRecordNotFound
	}
	return sec, nil
}

func (s *Store) EnableTOTPSecret(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.totpSecrets[userID]
	if !ok {
		return deskauth.ErrRecordNotFound
	}
	t := at
	sec.Enabled = true
	sec.VerifiedAt = &t
	s.totpSecrets[userID] = sec
	return nil
}

func (s *Store) DeleteTOTPSecret(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.totpSecrets, userID)
	return nil
}

func (s *Store) ReplaceRecoveryCodes(_ context.Context, userID string, hashes []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recovery[userID][:0:0]
	for _, c := range s.recovery[userID] {
		if c.usedAt != nil {
			kept = append(kept, c)
		}
	}
	for _, h := range hashes {
		kept = append(kept, recoveryCode{hash: h})
	}
	s.recovery[userID] = kept
	return nil
}

func (s *Store) ConsumeRecoveryCode(_ context.Context, userID, hash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := s.recovery[userID]
	for i := range codes {
		if codes[i].usedAt == nil && codes[i].hash == hash {
			at := now
			codes[i].usedAt = &at
			return true, nil
		}
	}
	return false, nil
}

// ---- tickets ----

// PutTicket inserts or replaces a ticket ownership record.
func (s *Store) PutTicket(t realtime.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
}

// DeleteTicket removes a ticket ownership record.
func (s *Store) DeleteTicket(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
}

func (s *Store) LookupTicket(_ context.Context, id string) (realtime.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return realtime.Ticket{}, deskauth.ErrRecordNotFound
	}
	return t, nil
}
