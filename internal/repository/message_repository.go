package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"msgboard/internal/entity"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// MessageRepository is an append-only, room-partitioned message log.
//
// Append assigns SequenceId = 1 + the room's current maximum and a CreatedAt
// that never goes backwards within the room; the message is durable when
// Append returns. Read returns messages newest first by SequenceId, skipping
// offset entries and returning at most limit. An unknown room is simply
// empty.
type MessageRepository interface {
	Append(ctx context.Context, room, content string) (entity.Message, error)
	Count(ctx context.Context, room string) (int, error)
	Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// roomLocks linearizes appends per room inside this process. Appends to
// different rooms never wait on each other.
type roomLocks struct {
	locks sync.Map
}

func (l *roomLocks) lock(room string) func() {
	v, _ := l.locks.LoadOrStore(room, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// stamp is the creation time for a message appended after one created at
// last. Timestamps are stored at millisecond precision.
func stamp(now, last time.Time) time.Time {
	t := now.UTC().Truncate(time.Millisecond)
	if t.Before(last) {
		return last
	}
	return t
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// window normalizes a read request; ok is false when nothing can be returned.
func window(offset, limit int) (int, int, bool) {
	if limit <= 0 {
		return 0, 0, false
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit, true
}
