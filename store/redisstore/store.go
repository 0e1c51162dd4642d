package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix     = "deskauth"
	defaultRetention  = 24 * time.Hour
	defaultHistoryCap = 200
	keyGrace          = time.Hour
)

var (
	_ deskauth.TokenStore   = (*Store)(nil)
	_ deskauth.AttemptStore = (*Store)(nil)
)

// Store is safe for concurrent use.
type Store struct {
	rdb        redis.UniversalClient
	prefix     string
	retention  time.Duration
	historyCap int64
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithAttemptRetention bounds how long failed attempts stay countable. It
// must exceed the login failure window.
func WithAttemptRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithHistoryCap bounds how many attempts one list call returns.
func WithHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = int64(n)
		}
	}
}

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:        rdb,
		prefix:     defaultPrefix,
		retention:  defaultRetention,
		historyCap: defaultHistoryCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", deskauth.ErrUnavailable, err)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func optionalMillis(v string) (*time.Time, error) {
	if v == "" || v == "0" {
		return nil, nil
	}
	t, err := parseMillis(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ttlFor returns a key lifetime covering [from, until] plus grace.
func ttlFor(from, until time.Time) time.Duration {
	d := until.Sub(from)
	if d < 0 {
		d = 0
	}
	return d + keyGrace
}

// pairs converts a flat HGETALL reply from a script into a map.
func pairs(reply any) (map[string]string, error) {
	items, ok := reply.([]any)
	if !ok || len(items)%2 != 0 {
		return nil, errors.New("unexpected script reply")
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		out[k] = v
	}
	return out, nil
}
