package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"msgboard/internal/entity"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type badgerMessageRepository struct {
	db    *badger.DB
	locks roomLocks
	now   func() time.Time
}

// badgerHead is stored under "seq/{room}" and tracks the newest message.
type badgerHead struct {
	Seq    int64 `json:"seq"`
	LastAt int64 `json:"lastAt"`
}

type badgerMessage struct {
	Id        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// NewBadgerMessageRepository stores each message under
// "msg/{room}/{seq:020d}". Sequence numbers are dense, so a page is read by
// direct key lookups rather than by skipping through an iterator.
func NewBadgerMessageRepository(db *badger.DB) MessageRepository {
	return &badgerMessageRepository{
		db:  db,
		now: time.Now,
	}
}

func headKey(room string) []byte {
	return []byte("seq/" + room)
}

func messageKey(room string, seq int64) []byte {
	return []byte(fmt.Sprintf("msg/%s/%020d", room, seq))
}

func readHead(txn *badger.Txn, room string) (badgerHead, error) {
	var head badgerHead
	item, err := txn.Get(headKey(room))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return head, nil
	}
	if err != nil {
		return head, err
	}
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &head)
	})
	return head, err
}

func (r *badgerMessageRepository) Append(ctx context.Context, room, content string) (entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	unlock := r.locks.lock(room)
	defer unlock()

	var message entity.Message
	err := r.db.Update(func(txn *badger.Txn) error {
		head, err := readHead(txn, room)
		if err != nil {
			return err
		}
		var last time.Time
		if head.Seq > 0 {
			last = fromMillis(head.LastAt)
		}

		message = entity.Message{
			Id:         uuid.New().String(),
			Room:       room,
			Content:    content,
			SequenceId: head.Seq + 1,
			CreatedAt:  stamp(r.now(), last),
		}
		body, err := json.Marshal(badgerMessage{
			Id:        message.Id,
			Content:   message.Content,
			CreatedAt: message.CreatedAt.UnixMilli(),
		})
		if err != nil {
			return err
		}
		next, err := json.Marshal(badgerHead{Seq: message.SequenceId, LastAt: message.CreatedAt.UnixMilli()})
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(room, message.SequenceId), body); err != nil {
			return err
		}
		return txn.Set(headKey(room), next)
	})
	if err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	return message, nil
}

func (r *badgerMessageRepository) Count(ctx context.Context, room string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("count", err)
	}
	var head badgerHead
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		head, err = readHead(txn, room)
		return err
	})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(head.Seq), nil
}

func (r *badgerMessageRepository) Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("read", err)
	}
	messages := make([]entity.Message, 0)
	offset, limit, ok := window(offset, limit)
	if !ok {
		return messages, nil
	}

	err := r.db.View(func(txn *badger.Txn) error {
		head, err := readHead(txn, room)
		if err != nil {
			return err
		}
		for seq := head.Seq - int64(offset); seq >= 1 && len(messages) < limit; seq-- {
			item, err := txn.Get(messageKey(room, seq))
			if err != nil {
				return err
			}
			var stored badgerMessage
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &stored)
			}); err != nil {
				return err
			}
			messages = append(messages, entity.Message{
				Id:         stored.Id,
				Room:       room,
				Content:    stored.Content,
				SequenceId: seq,
				CreatedAt:  fromMillis(stored.CreatedAt),
			})
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("read", err)
	}
	return messages, nil
}
