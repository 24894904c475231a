package repository

import (
	"context"
	"errors"
	"time"

	"msgboard/infrastructure/db"
	"msgboard/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMessageRepository struct {
	db    *mongo.Database
	locks roomLocks
	now   func() time.Time
}

// NewMongoMessageRepository relies on the unique (room, sequenceId) index
// created by db.MongoStore.EnsureIndexes.
func NewMongoMessageRepository(database *mongo.Database) MessageRepository {
	return &mongoMessageRepository{
		db:  database,
		now: time.Now,
	}
}

func (r *mongoMessageRepository) collection() *mongo.Collection {
	return r.db.Collection(db.MessagesCollection)
}

func (r *mongoMessageRepository) Append(ctx context.Context, room, content string) (entity.Message, error) {
	unlock := r.locks.lock(room)
	defer unlock()

	collection := r.collection()
	filter := bson.M{"room": room}
	opts := options.FindOne().SetSort(bson.D{{Key: "sequenceId", Value: -1}})

	var last entity.Message
	err := collection.FindOne(ctx, filter, opts).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return entity.Message{}, unavailable("append", err)
	}

	message := entity.Message{
		Id:         uuid.New().String(),
		Room:       room,
		Content:    content,
		SequenceId: last.SequenceId + 1,
		CreatedAt:  stamp(r.now(), last.CreatedAt.UTC()),
	}
	if _, err := collection.InsertOne(ctx, message); err != nil {
		return entity.Message{}, unavailable("append", err)
	}
	return message, nil
}

func (r *mongoMessageRepository) Count(ctx context.Context, room string) (int, error) {
	count, err := r.collection().CountDocuments(ctx, bson.M{"room": room})
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int(count), nil
}

func (r *mongoMessageRepository) Read(ctx context.Context, room string, offset, limit int) ([]entity.Message, error) {
	messages := make([]entity.Message, 0)
	offset, limit, ok := window(offset, limit)
	if !ok {
		return messages, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sequenceId", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection().Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, unavailable("read", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &messages); err != nil {
		return nil, unavailable("read", err)
	}
	for i := range messages {
		messages[i].CreatedAt = messages[i].CreatedAt.UTC()
	}
	return messages, nil
}
