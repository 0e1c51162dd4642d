package redisstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// attemptRecord is the field layout of an {p}:at:{id} hash.
type attemptRecord struct {
	ID        string `redis:"id"`
	Email     string `redis:"email"`
	UserID    string `redis:"user_id"`
	Success   bool   `redis:"success"`
	IP        string `redis:"ip"`
	UserAgent string `redis:"ua"`
	At        int64  `redis:"at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) attemptKey(id string) string     { return s.key("at", id) }
func (s *Store) failureKey(email string) string  { return s.key("af", normalizeEmail(email)) }
func (s *Store) byEmailKey(email string) string  { return s.key("ae", normalizeEmail(email)) }
func (s *Store) historyKey(userID string) string { return s.key("ah", userID) }

// RecordAttempt stores the full attempt as its own hash and indexes it by
// email, by user when known, and, for failures, in the counting window.
// Only the counting window is ever trimmed.
func (s *Store) RecordAttempt(ctx context.Context, a deskauth.AuthAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	at := a.CreatedAt.UnixMilli()
	score := float64(at)

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.attemptKey(a.ID),
			"id", a.ID,
			"email", a.Email,
			"user_id", a.UserID,
			"success", strconv.FormatBool(a.Success),
			"ip", a.IP,
			"ua", a.UserAgent,
			"at", at,
		)
		p.ZAdd(ctx, s.byEmailKey(a.Email), redis.Z{Score: score, Member: a.ID})
		if a.UserID != "" {
			p.ZAdd(ctx, s.historyKey(a.UserID), redis.Z{Score: score, Member: a.ID})
		}
		if !a.Success {
			key := s.failureKey(a.Email)
			p.ZAdd(ctx, key, redis.Z{Score: score, Member: a.ID})
			p.ZRemRangeByScore(ctx, key, "-inf", "("+millis(a.CreatedAt.Add(-s.retention)))
			p.PExpire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error) {
	n, err := s.rdb.ZCount(ctx, s.failureKey(email), strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

func (s *Store) ListAttempts(ctx context.Context, userID string, limit int) ([]deskauth.AuthAttempt, error) {
	return s.listIndexed(ctx, s.historyKey(userID), limit)
}

func (s *Store) ListAttemptsByEmail(ctx context.Context, email string, limit int) ([]deskauth.AuthAttempt, error) {
	return s.listIndexed(ctx, s.byEmailKey(email), limit)
}

// listIndexed resolves the newest ids in index to their attempt hashes.
func (s *Store) listIndexed(ctx context.Context, index string, limit int) ([]deskauth.AuthAttempt, error) {
	if limit <= 0 || int64(limit) > s.historyCap {
		limit = int(s.historyCap)
	}
	ids, err := s.rdb.ZRevRange(ctx, index, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.attemptKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	out := make([]deskauth.AuthAttempt, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var rec attemptRecord
		if err := cmd.Scan(&rec); err != nil {
			continue
		}
		out = append(out, deskauth.AuthAttempt{
			ID:        rec.ID,
			Email:     rec.Email,
			UserID:    rec.UserID,
			Success:   rec.Success,
			IP:        rec.IP,
			UserAgent: rec.UserAgent,
			CreatedAt: time.UnixMilli(rec.At).UTC(),
		})
	}
	return out, nil
}
