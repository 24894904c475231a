package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"msgboard/internal/entity"

	"github.com/google/uuid"
)

type sqliteMessageRepository struct {
	db    *sql.DB
	locks roomLocks
	now   func() time.Time
}

// NewSQLiteMessageRepository expects the schema applied by db.OpenSQLite.
func NewSQLiteMessageRepository(db *sql.DB) MessageRepository {
	return &sqliteMessageRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *sqliteMessageRepository) Append(ctx context.Context, room, content string) (entity.Message, error) {
	unlock := r.locks.lock(room)
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	defer tx.Rollback()

	var lastSeq, lastAt int64
	var last time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT seq, created_at FROM messages WHERE room = ? ORDER BY seq DESC LIMIT 1`,
		room,
	).Scan(&lastSeq, &lastAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return entity.Message{}, unavailable("append", err)
	default:
		last = fromMillis(lastAt)
	}

	message := entity.Message{
		Id:         uuid.New().String(),
		Room:       room,
		Content:    content,
		SequenceId: lastSeq + 1,
		CreatedAt:  stamp(r.now(), last),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, room, seq, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		message.Id, message.Room, message.SequenceId, message.Content, message.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	if err := tx.Commit(); err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	return message, nil
}

func (r *sqliteMessageRepository) Count(ctx context.Context, room string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE room = ?`, room).Scan(&count)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return count, nil
}

func (r *sqliteMessageRepository) Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error) {
	messages := make([]entity.Message, 0)
	offset, limit, ok := window(offset, limit)
	if !ok {
		return messages, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seq, content, created_at FROM messages
		WHERE room = ?
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`,
		room, limit, offset,
	)
	if err != nil {
		return nil, unavailable("read", err)
	}
	defer rows.Close()

	for rows.Next() {
		var createdAt int64
		message := entity.Message{Room: room}
		if err := rows.Scan(&message.Id, &message.SequenceId, &message.Content, &createdAt); err != nil {
			return nil, unavailable("read", err)
		}
		message.CreatedAt = fromMillis(createdAt)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read", err)
	}
	return messages, nil
}
