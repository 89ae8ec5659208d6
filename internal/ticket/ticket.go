// Package ticket hands out the daily takeout pickup numbers: 1, 2, 3, ...
// starting over every local midnight.
package ticket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
)

type Sequencer interface {
	Next(ctx context.Context) (int, error)
}

const dayLayout = "2006-01-02"

// MemorySequencer is process local. The day key makes it reset even if the
// cron job is not running.
type MemorySequencer struct {
	mu  sync.Mutex
	day string
	n   int
	loc *time.Location
	now func() time.Time
}

func NewMemorySequencer(loc *time.Location) *MemorySequencer {
	if loc == nil {
		loc = time.Local
	}
	return &MemorySequencer{loc: loc, now: time.Now}
}

func (s *MemorySequencer) Next(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.now().In(s.loc).Format(dayLayout)
	if day != s.day {
		s.day = day
		s.n = 0
	}
	s.n++
	return s.n, nil
}

// Reset starts a new day's sequence. Numbers already handed out today are
// kept, so a late midnight job cannot reissue a ticket.
func (s *MemorySequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.now().In(s.loc).Format(dayLayout)
	if day == s.day {
		return
	}
	s.day = day
	s.n = 0
}

// StartDailyReset schedules Reset at midnight in the sequencer's location.
// Stop the returned cron on shutdown.
func (s *MemorySequencer) StartDailyReset() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc("0 0 * * *", s.Reset); err != nil {
		return nil, fmt.Errorf("schedule ticket reset: %w", err)
	}
	c.Start()
	return c, nil
}

// RedisSequencer shares one sequence between API replicas.
type RedisSequencer struct {
	client *redis.Client
	prefix string
	loc    *time.Location
	now    func() time.Time
}

func NewRedisSequencer(client *redis.Client, loc *time.Location) *RedisSequencer {
	if loc == nil {
		loc = time.Local
	}
	return &RedisSequencer{client: client, prefix: "ticket:", loc: loc, now: time.Now}
}

func (s *RedisSequencer) key() string {
	return s.prefix + s.now().In(s.loc).Format(dayLayout)
}

func (s *RedisSequencer) Next(ctx context.Context) (int, error) {
	key := s.key()
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis ticket incr: %w", err)
	}
	return int(incr.Val()), nil
}

// PostgresSequencer keeps one counter row per day in ticket_counters.
type PostgresSequencer struct {
	db  *sqlx.DB
	loc *time.Location
	now func() time.Time
}

func NewPostgresSequencer(db *sqlx.DB, loc *time.Location) *PostgresSequencer {
	if loc == nil {
		loc = time.Local
	}
	return &PostgresSequencer{db: db, loc: loc, now: time.Now}
}

func (s *PostgresSequencer) Next(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		INSERT INTO ticket_counters (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = ticket_counters.value + 1
		RETURNING value`, s.now().In(s.loc).Format(dayLayout))
	if err != nil {
		return 0, fmt.Errorf("postgres ticket incr: %w", err)
	}
	return n, nil
}
