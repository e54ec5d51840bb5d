package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/civic-fix/api-go/models"
	"github.com/redis/go-redis/v9"
)

const ticketSuffixModulo = 100_000_000 // 8 digits

func TicketPrefix(kind models.ReportType) string {
	if kind == models.ReportTypeRepair {
		return "RP"
	}
	return "RQ"
}

// Sequence yields the numeric part of a ticket id for a prefix.
type Sequence interface {
	Next(ctx context.Context, prefix string) (int64, error)
}

// ClockSequence hands out millisecond timestamps, bumped by one whenever the
// clock has not advanced past the last value issued.
type ClockSequence struct {
	now  func() time.Time
	last atomic.Int64
}

func NewClockSequence(now func() time.Time) *ClockSequence {
	if now == nil {
		now = time.Now
	}
	return &ClockSequence{now: now}
}

func (s *ClockSequence) Next(_ context.Context, _ string) (int64, error) {
	for {
		last := s.last.Load()
		next := s.now().UnixMilli()
		if next <= last {
			next = last + 1
		}
		if s.last.CompareAndSwap(last, next) {
			return next, nil
		}
	}
}

// RedisSequence keeps one shared counter per prefix so several API
// instances never hand out the same suffix.
type RedisSequence struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisSequence(client *redis.Client) *RedisSequence {
	return &RedisSequence{client: client, now: time.Now}
}

func (s *RedisSequence) Next(ctx context.Context, prefix string) (int64, error) {
	key := "ticket:seq:" + prefix
	// Seed a fresh counter from the clock so suffixes keep their
	// timestamp-like shape instead of restarting at 00000001.
	seed := s.now().UnixMilli() % ticketSuffixModulo
	if err := s.client.SetNX(ctx, key, seed, 0).Err(); err != nil {
		return 0, fmt.Errorf("seed %s: %w", key, err)
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// TicketAllocator produces ids of the form {PREFIX}{8 digits}.
type TicketAllocator struct {
	seq Sequence
}

func NewTicketAllocator(seq Sequence) *TicketAllocator {
	if seq == nil {
		seq = NewClockSequence(nil)
	}
	return &TicketAllocator{seq: seq}
}

func (a *TicketAllocator) Allocate(ctx context.Context, kind models.ReportType) (string, error) {
	prefix := TicketPrefix(kind)
	n, err := a.seq.Next(ctx, prefix)
	if err != nil {
		return "", dependency("ticket sequence", err)
	}
	return fmt.Sprintf("%s%08d", prefix, n%ticketSuffixModulo), nil
}
