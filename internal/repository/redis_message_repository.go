package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"msgboard/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// appendScript assigns the next sequence id, keeps the room clock monotone
// and stores the member in one atomic step.
//
// KEYS: seq counter, last timestamp, message zset
// ARGV: zero-padded unix millis, message id, content
var appendScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[1])
local at = ARGV[1]
local last = redis.call('GET', KEYS[2])
if last and last > at then
	at = last
end
redis.call('SET', KEYS[2], at)
redis.call('ZADD', KEYS[3], seq, at .. '|' .. ARGV[2] .. '|' .. ARGV[3])
return {seq, at}
`)

type redisMessageRepository struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisMessageRepository keeps each room in a sorted set scored by
// sequence id. Members are "millis|id|content".
func NewRedisMessageRepository(rdb *redis.Client) MessageRepository {
	return &redisMessageRepository{
		rdb:    rdb,
		prefix: "board",
		now:    time.Now,
	}
}

// keys share a hash tag so a clustered deployment keeps a room on one slot.
func (r *redisMessageRepository) keys(room string) (seq, last, messages string) {
	base := r.prefix + ":{" + room + "}"
	return base + ":seq", base + ":last", base + ":messages"
}

func (r *redisMessageRepository) Append(ctx context.Context, room, content string) (entity.Message, error) {
	seqKey, lastKey, messagesKey := r.keys(room)
	id := uuid.New().String()
	at := stamp(r.now(), time.Time{})

	res, err := appendScript.Run(ctx, r.rdb,
		[]string{seqKey, lastKey, messagesKey},
		padMillis(at), id, content,
	).Slice()
	if err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	if len(res) != 2 {
		return entity.Message{}, unavailable("append", fmt.Errorf("unexpected script reply %v", res))
	}
	seq, ok := res[0].(int64)
	if !ok {
		return entity.Message{}, unavailable("append", fmt.Errorf("unexpected sequence %v", res[0]))
	}
	stored, _ := res[1].(string)
	ms, err := strconv.ParseInt(stored, 10, 64)
	if err != nil {
		return entity.Message{}, unavailable("append", err)
	}

	return entity.Message{
		Id:         id,
		Room:       room,
		Content:    content,
		SequenceId: seq,
		CreatedAt:  fromMillis(ms),
	}, nil
}

func (r *redisMessageRepository) Count(ctx context.Context, room string) (int, error) {
	_, _, messagesKey := r.keys(room)
	count, err := r.rdb.ZCard(ctx, messagesKey).Result()
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(count), nil
}

func (r *redisMessageRepository) Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error) {
	messages := make([]entity.Message, 0)
	offset, limit, ok := window(offset, limit)
	if !ok {
		return messages, nil
	}

	_, _, messagesKey := r.keys(room)
	members, err := r.rdb.ZRevRangeWithScores(ctx, messagesKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, unavailable("read", err)
	}
	for _, z := range members {
		message, err := decodeMember(room, z)
		if err != nil {
			return nil, unavailable("read", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func padMillis(t time.Time) string {
	return fmt.Sprintf("%019d", t.UnixMilli())
}

func decodeMember(room string, z redis.Z) (entity.Message, error) {
	member, ok := z.Member.(string)
	if !ok {
		return entity.Message{}, fmt.Errorf("unexpected member type %T", z.Member)
	}
	parts := strings.SplitN(member, "|", 3)
	if len(parts) != 3 {
		return entity.Message{}, fmt.Errorf("malformed member %q", member)
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return entity.Message{}, err
	}
	return entity.Message{
		Id:         parts[1],
		Room:       room,
		Content:    parts[2],
		SequenceId: int64(z.Score),
		CreatedAt:  fromMillis(ms),
	}, nil
}
