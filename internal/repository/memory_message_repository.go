package repository

import (
	"context"
	"sync"
	"time"

	"msgboard/internal/entity"

	"github.com/google/uuid"
)

type memoryRoom struct {
	mu       sync.RWMutex
	messages []entity.Message
}

type memoryMessageRepository struct {
	mu    sync.RWMutex
	rooms map[string]*memoryRoom
	now   func() time.Time
}

// NewMemoryMessageRepository keeps messages in process memory. Nothing
// survives a restart.
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		rooms: make(map[string]*memoryRoom),
		now:   time.Now,
	}
}

func (r *memoryMessageRepository) room(name string, create bool) *memoryRoom {
	r.mu.RLock()
	room, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok || !create {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[name]; !ok {
		room = &memoryRoom{}
		r.rooms[name] = room
	}
	return room
}

func (r *memoryMessageRepository) Append(ctx context.Context, room, content string) (entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return entity.Message{}, unavailable("append", err)
	}

	log := r.room(room, true)
	log.mu.Lock()
	defer log.mu.Unlock()

	var last time.Time
	if n := len(log.messages); n > 0 {
		last = log.messages[n-1].CreatedAt
	}
	message := entity.Message{
		Id:         uuid.New().String(),
		Room:       room,
		Content:    content,
		SequenceId: int64(len(log.messages)) + 1,
		CreatedAt:  stamp(r.now(), last),
	}
	log.messages = append(log.messages, message)
	return message, nil
}

func (r *memoryMessageRepository) Count(ctx context.Context, room string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("count", err)
	}
	log := r.room(room, false)
	if log == nil {
		return 0, nil
	}
	log.mu.RLock()
	defer log.mu.RUnlock()
	return len(log.messages), nil
}

func (r *memoryMessageRepository) Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("read", err)
	}
	messages := make([]entity.Message, 0)
	offset, limit, ok := window(offset, limit)
	log := r.room(room, false)
	if !ok || log == nil {
		return messages, nil
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	for i := len(log.messages) - 1 - offset; i >= 0 && len(messages) < limit; i-- {
		messages = append(messages, log.messages[i])
	}
	return messages, nil
}
