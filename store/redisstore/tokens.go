package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/redis/go-redis/v9"
)

// createRecordLua writes a hash record only if the key is absent.
// KEYS[1] = record key, KEYS[2] = optional index set
// ARGV[1] = ttl millis, ARGV[2] = index member, ARGV[3..] = field/value pairs
var createRecordLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
if KEYS[2] then
  redis.call('SADD', KEYS[2], ARGV[2])
  redis.call('PEXPIRE', KEYS[2], ARGV[1])
end
return 1
`)

// revokeRefreshLua marks one refresh token revoked if it is not already.
// KEYS[1] = token key, ARGV[1] = now millis
var revokeRefreshLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local rev = redis.call('HGET', KEYS[1], 'rev')
if rev and rev ~= '0' then
  return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1])
return 1
`)

// revokeUserLua revokes every unrevoked token in a user's index and prunes
// members whose records have expired.
// KEYS[1] = index set, ARGV[1] = token key prefix, ARGV[2] = now millis
var revokeUserLua = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local k = ARGV[1] .. h
  if redis.call('EXISTS', k) == 0 then
    redis.call('SREM', KEYS[1], h)
  else
    local rev = redis.call('HGET', k, 'rev')
    if (not rev) or rev == '0' then
      redis.call('HSET', k, 'rev', ARGV[2])
      n = n + 1
    end
  end
end
return n
`)

// consumeSingleUseLua marks a token used when kind matches, it is unused,
// and it has not expired. Returns the record or nil.
// KEYS[1] = token key, ARGV[1] = kind, ARGV[2] = now millis
var consumeSingleUseLua = redis.NewScript(`
local data = redis.call('HGETALL', KEYS[1])
if #data == 0 then
  return false
end
local rec = {}
for i = 1, #data, 2 do
  rec[data[i]] = data[i + 1]
end
if rec['kind'] ~= ARGV[1] or rec['used'] ~= '0' then
  return false
end
if tonumber(rec['exp']) <= tonumber(ARGV[2]) then
  return false
end
redis.call('HSET', KEYS[1], 'used', ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// enableTOTPLua flips an existing enrollment to enabled.
// KEYS[1] = totp key, ARGV[1] = now millis
var enableTOTPLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'enabled', '1', 'verified', ARGV[1])
return 1
`)

// replaceRecoveryLua drops unused codes and adds the new batch.
// KEYS[1] = codes key, ARGV = code hashes
var replaceRecoveryLua = redis.NewScript(`
local data = redis.call('HGETALL', KEYS[1])
for i = 1, #data, 2 do
  if data[i + 1] == '0' then
    redis.call('HDEL', KEYS[1], data[i])
  end
end
for i = 1, #ARGV do
  redis.call('HSET', KEYS[1], ARGV[i], '0')
end
return #ARGV
`)

// consumeRecoveryLua marks one unused code used.
// KEYS[1] = codes key, ARGV[1] = code hash, ARGV[2] = now millis
var consumeRecoveryLua = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if v ~= '0' then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (s *Store) refreshKey(hash string) string { return s.key("rt", hash) }
func (s *Store) refreshIndex(userID string) string { return s.key("rtu", userID) }
func (s *Store) singleUseKey(hash string) string { return s.key("su", hash) }
func (s *Store) totpKey(userID string) string { return s.key("totp", userID) }
func (s *Store) recoveryKey(userID string) string { return s.key("rc", userID) }

// ---- refresh tokens ----

func (s *Store) CreateRefreshToken(ctx context.Context, t deskauth.RefreshToken) error {
	ttl := ttlFor(t.IssuedAt, t.ExpiresAt)
	created, err := createRecordLua.Run(ctx, s.rdb,
		[]string{s.refreshKey(t.TokenHash), s.refreshIndex(t.UserID)},
		ttl.Milliseconds(), t.TokenHash,
		"id", t.ID,
		"user_id", t.UserID,
		"ua", t.UserAgent,
		"ip", t.IP,
		"iat", millis(t.IssuedAt),
		"exp", millis(t.ExpiresAt),
		"rev", "0",
	).Int()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return deskauth.ErrRecordExists
	}
	return nil
}

func (s *Store) GetLiveRefreshToken(ctx context.Context, hash string, now time.Time) (deskauth.RefreshToken, error) {
	rec, err := s.rdb.HGetAll(ctx, s.refreshKey(hash)).Result()
	if err != nil {
		return deskauth.RefreshToken{}, unavailable(err)
	}
	if len(rec) == 0 {
		return deskauth.RefreshToken{}, deskauth.ErrRecordNotFound
	}

	t, err := decodeRefresh(hash, rec)
	if err != nil {
		return deskauth.RefreshToken{}, unavailable(err)
	}
	if !t.Live(now) {
		return deskauth.RefreshToken{}, deskauth.ErrRecordNotFound
	}
	return t, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) (int, error) {
	n, err := revokeRefreshLua.Run(ctx, s.rdb, []string{s.refreshKey(hash)}, millis(now)).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	n, err := revokeUserLua.Run(ctx, s.rdb,
		[]string{s.refreshIndex(userID)},
		s.key("rt")+":", millis(now),
	).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func decodeRefresh(hash string, rec map[string]string) (deskauth.RefreshToken, error) {
	iat, err := parseMillis(rec["iat"])
	if err != nil {
		return deskauth.RefreshToken{}, err
	}
	exp, err := parseMillis(rec["exp"])
	if err != nil {
		return deskauth.RefreshToken{}, err
	}
	rev, err := optionalMillis(rec["rev"])
	if err != nil {
		return deskauth.RefreshToken{}, err
	}
	return deskauth.RefreshToken{
		ID:        rec["id"],
		UserID:    rec["user_id"],
		TokenHash: hash,
		UserAgent: rec["ua"],
		IP:        rec["ip"],
		IssuedAt:  iat,
		ExpiresAt: exp,
		RevokedAt: rev,
	}, nil
}

// ---- single-use tokens ----

func (s *Store) CreateSingleUseToken(ctx context.Context, t deskauth.SingleUseToken) error {
	ttl := ttlFor(t.CreatedAt, t.ExpiresAt)
	created, err := createRecordLua.Run(ctx, s.rdb,
		[]string{s.singleUseKey(t.TokenHash)},
		ttl.Milliseconds(), "",
		"id", t.ID,
		"user_id", t.UserID,
		"kind", string(t.Kind),
		"exp", millis(t.ExpiresAt),
		"created", millis(t.CreatedAt),
		"used", "0",
	).Int()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return deskauth.ErrRecordExists
	}
	return nil
}

func (s *Store) ConsumeSingleUseToken(ctx context.Context, kind deskauth.TokenKind, hash string, now time.Time) (deskauth.SingleUseToken, error) {
	reply, err := consumeSingleUseLua.Run(ctx, s.rdb,
		[]string{s.singleUseKey(hash)},
		string(kind), millis(now),
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return deskauth.SingleUseToken{}, deskauth.ErrRecordNotFound
		}
		return deskauth.SingleUseToken{}, unavailable(err)
	}

	rec, err := pairs(reply)
	if err != nil {
		return deskauth.SingleUseToken{}, unavailable(err)
	}
	exp, err := parseMillis(rec["exp"])
	if err != nil {
		return deskauth.SingleUseToken{}, unavailable(err)
	}
	created, err := parseMillis(rec["created"])
	if err != nil {
		return deskauth.SingleUseToken{}, unavailable(err)
	}
	used, err := optionalMillis(rec["used"])
	if err != nil {
		return deskauth.SingleUseToken{}, unavailable(err)
	}
	return deskauth.SingleUseToken{
		ID:        rec["id"],
		UserID:    rec["user_id"],
		Kind:      deskauth.TokenKind(rec["kind"]),
		TokenHash: hash,
		ExpiresAt: exp,
		UsedAt:    used,
		CreatedAt: created,
	}, nil
}

// ---- second factor ----

func (s *Store) SaveTOTPSecret(ctx context.Context, sec deskauth.TOTPSecret) error {
	enabled, verified := "0", "0"
	if sec.Enabled {
		enabled = "1"
	}
	if sec.VerifiedAt != nil {
		verified = millis(*sec.VerifiedAt)
	}

	key := s.totpKey(sec.UserID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"secret", sec.Secret,
			"enabled", enabled,
			"verified", verified,
			"created", millis(sec.CreatedAt),
		)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) GetTOTPSecret(ctx context.Context, userID string) (deskauth.TOTPSecret, error) {
	rec, err := s.rdb.HGetAll(ctx, s.totpKey(userID)).Result()
	if err != nil {
		return deskauth.TOTPSecret{}, unavailable(err)
	}
	if len(rec) == 0 {
		return deskauth.TOTPSecret{}, deskauth.ErrRecordNotFound
	}

	created, err := parseMillis(rec["created"])
	if err != nil {
		return deskauth.TOTPSecret{}, unavailable(err)
	}
	verified, err := optionalMillis(rec["verified"])
	if err != nil {
		return deskauth.TOTPSecret{}, unavailable(err)
	}
	return deskauth.TOTPSecret{
		UserID:     userID,
		Secret:     rec["secret"],
		Enabled:    rec["enabled"] == "1",
		VerifiedAt: verified,
		CreatedAt:  created,
	}, nil
}

func (s *Store) EnableTOTPSecret(ctx context.Context, userID string, at time.Time) error {
	ok, err := enableTOTPLua.Run(ctx, s.rdb, []string{s.totpKey(userID)}, millis(at)).Int()
	if err != nil {
		return unavailable(err)
	}
	if ok == 0 {
		return deskauth.ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeleteTOTPSecret(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.totpKey(userID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string, _ time.Time) error {
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}
	if err := replaceRecoveryLua.Run(ctx, s.rdb, []string{s.recoveryKey(userID)}, args...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID, hash string, now time.Time) (bool, error) {
	n, err := consumeRecoveryLua.Run(ctx, s.rdb, []string{s.recoveryKey(userID)}, hash, millis(now)).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}
