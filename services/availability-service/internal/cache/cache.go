package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/bookslots/services/availability-service/internal/availability"
)

const (
	defaultTTL    = time.Minute
	defaultPrefix = "avail"

	// Generation counters outlive any entry they version.
	generationTTL = 7 * 24 * time.Hour

	kindWindows      = "windows"
	kindAppointments = "appointments"
)

// Recorder is notified of every cache lookup.
type Recorder interface {
	ObserveCache(kind string, hit bool)
}

type Config struct {
	TTL    time.Duration
	Prefix string
}

// Store is a read-through Redis cache in front of an availability.Store.
//
// Entries are keyed by a per-provider (windows) or per-provider-date (appointments)
// generation counter. Invalidation bumps the counter, so a fill racing with an
// invalidation lands on a key that is never read again.
type Store struct {
	next     availability.Store
	rdb      *redis.Client
	ttl      time.Duration
	prefix   string
	logger   *slog.Logger
	recorder Recorder
}

var bumpGenerationScript = redis.NewScript(`
local gen = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return gen
`)

func New(next availability.Store, rdb *redis.Client, cfg Config, logger *slog.Logger, recorder Recorder) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, logger: logger, recorder: recorder}
}

func (s *Store) WeeklyWindows(ctx context.Context, providerID string) ([]availability.WeeklyWindow, error) {
	var out []availability.WeeklyWindow
	genKey := s.windowsGenKey(providerID)
	err := s.readThrough(ctx, kindWindows, genKey, func(gen int64) string {
		return fmt.Sprintf("%s:windows:%s:%d", s.prefix, providerID, gen)
	}, &out, func() (any, error) {
		windows, err := s.next.WeeklyWindows(ctx, providerID)
		out = windows
		return windows, err
	})
	return out, err
}

func (s *Store) ActiveAppointments(ctx context.Context, providerID string, date time.Time) ([]availability.Appointment, error) {
	var out []availability.Appointment
	day := date.Format(time.DateOnly)
	genKey := s.appointmentsGenKey(providerID, date)
	err := s.readThrough(ctx, kindAppointments, genKey, func(gen int64) string {
		return fmt.Sprintf("%s:appts:%s:%s:%d", s.prefix, providerID, day, gen)
	}, &out, func() (any, error) {
		appts, err := s.next.ActiveAppointments(ctx, providerID, date)
		out = appts
		return appts, err
	})
	return out, err
}

// ServiceDuration is passed straight through; service lengths are not cached.
func (s *Store) ServiceDuration(ctx context.Context, providerID, serviceID string) (int, error) {
	lookup, ok := s.next.(availability.ServiceDurations)
	if !ok {
		return 0, availability.ErrServiceNotFound
	}
	return lookup.ServiceDuration(ctx, providerID, serviceID)
}

// InvalidateAppointments drops the cached bookings for providerID on date.
func (s *Store) InvalidateAppointments(ctx context.Context, providerID string, date time.Time) error {
	return s.bump(ctx, s.appointmentsGenKey(providerID, date))
}

// InvalidateWindows drops the cached weekly windows for providerID.
func (s *Store) InvalidateWindows(ctx context.Context, providerID string) error {
	return s.bump(ctx, s.windowsGenKey(providerID))
}

func (s *Store) windowsGenKey(providerID string) string {
	return s.prefix + ":gen:windows:" + providerID
}

func (s *Store) appointmentsGenKey(providerID string, date time.Time) string {
	return s.prefix + ":gen:appts:" + providerID + ":" + date.Format(time.DateOnly)
}

// readThrough serves dst from Redis when possible. Any Redis failure falls through to load;
// errors from load are returned untouched.
func (s *Store) readThrough(ctx context.Context, kind, genKey string, dataKey func(int64) string, dst any, load func() (any, error)) error {
	gen, err := s.generation(ctx, genKey)
	if err != nil {
		s.logger.Warn("availability cache generation lookup failed", "kind", kind, "err", err)
		_, err := load()
		return err
	}
	key := dataKey(gen)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		jerr := json.Unmarshal(raw, dst)
		if jerr == nil {
			s.observe(kind, true)
			return nil
		}
		s.logger.Warn("availability cache entry corrupt", "key", key, "err", jerr)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("availability cache read failed", "key", key, "err", err)
	}
	s.observe(kind, false)

	val, err := load()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(val)
	if err != nil {
		return nil
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("availability cache write failed", "key", key, "err", err)
	}
	return nil
}

func (s *Store) generation(ctx context.Context, genKey string) (int64, error) {
	v, err := s.rdb.Get(ctx, genKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (s *Store) bump(ctx context.Context, genKey string) error {
	if err := bumpGenerationScript.Run(ctx, s.rdb, []string{genKey}, generationTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", genKey, err)
	}
	return nil
}

func (s *Store) observe(kind string, hit bool) {
	if s.recorder != nil {
		s.recorder.ObserveCache(kind, hit)
	}
}
