package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"msgboard/infrastructure/db"
	"msgboard/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// frozenClock hands out a fixed instant; tests move it explicitly.
type frozenClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *frozenClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *frozenClock) set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = at
}

type factory func(t *testing.T, clock func() time.Time) MessageRepository

func TestMemoryMessageRepository(t *testing.T) {
	runMessageRepositorySuite(t, func(t *testing.T, clock func() time.Time) MessageRepository {
		repo := NewMemoryMessageRepository().(*memoryMessageRepository)
		repo.now = clock
		return repo
	})
}

func TestSQLiteMessageRepository(t *testing.T) {
	runMessageRepositorySuite(t, func(t *testing.T, clock func() time.Time) MessageRepository {
		conn, err := db.OpenSQLite(context.Background(), t.TempDir()+"/board.db")
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })

		repo := NewSQLiteMessageRepository(conn).(*sqliteMessageRepository)
		repo.now = clock
		return repo
	})
}

func TestBadgerMessageRepository(t *testing.T) {
	runMessageRepositorySuite(t, func(t *testing.T, clock func() time.Time) MessageRepository {
		bdb, err := db.OpenBadgerInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { bdb.Close() })

		repo := NewBadgerMessageRepository(bdb).(*badgerMessageRepository)
		repo.now = clock
		return repo
	})
}

func TestBadgerMessageRepository_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	bdb, err := db.OpenBadger(dir)
	req.NoError(err)
	repo := NewBadgerMessageRepository(bdb)
	for _, m := range []string{"one", "two"} {
		_, err := repo.Append(ctx, "lobby", m)
		req.NoError(err)
	}
	req.NoError(bdb.Close())

	bdb, err = db.OpenBadger(dir)
	req.NoError(err)
	t.Cleanup(func() { bdb.Close() })
	repo = NewBadgerMessageRepository(bdb)

	third, err := repo.Append(ctx, "lobby", "three")
	req.NoError(err)
	req.Equal(int64(3), third.SequenceId)

	read, err := repo.Read(ctx, "lobby", 0, 10)
	req.NoError(err)
	req.Equal([]string{"three", "two", "one"}, contents(read))
}

func TestRedisMessageRepository(t *testing.T) {
	runMessageRepositorySuite(t, func(t *testing.T, clock func() time.Time) MessageRepository {
		server := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { rdb.Close() })

		repo := NewRedisMessageRepository(rdb).(*redisMessageRepository)
		repo.now = clock
		return repo
	})
}

func TestMongoMessageRepository(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	runMessageRepositorySuite(t, func(t *testing.T, clock func() time.Time) MessageRepository {
		ctx := context.Background()
		store, err := db.NewMongoStore(ctx, uri, fmt.Sprintf("msgboard_test_%d", time.Now().UnixNano()))
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = store.DB.Drop(ctx)
			_ = store.Close(ctx)
		})

		repo := NewMongoMessageRepository(store.DB).(*mongoMessageRepository)
		repo.now = clock
		return repo
	})
}

func runMessageRepositorySuite(t *testing.T, newRepo factory) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	t.Run("should read back an appended message immediately", func(t *testing.T) {
		req := require.New(t)
		clock := &frozenClock{at: base}
		repo := newRepo(t, clock.now)

		stored, err := repo.Append(ctx, "lobby", "hello")
		req.NoError(err)
		req.NotEmpty(stored.Id)
		req.Equal("lobby", stored.Room)
		req.Equal("hello", stored.Content)
		req.Equal(int64(1), stored.SequenceId)
		req.True(stored.CreatedAt.Equal(base))
		req.Equal(time.UTC, stored.CreatedAt.Location())

		read, err := repo.Read(ctx, "lobby", 0, 1)
		req.NoError(err)
		req.Len(read, 1)
		req.Equal(stored.Id, read[0].Id)
		req.Equal(stored.Content, read[0].Content)
		req.Equal(stored.SequenceId, read[0].SequenceId)
		req.True(stored.CreatedAt.Equal(read[0].CreatedAt))
	})

	t.Run("should treat an unknown room as empty", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t, time.Now)

		count, err := repo.Count(ctx, "nowhere")
		req.NoError(err)
		req.Zero(count)

		read, err := repo.Read(ctx, "nowhere", 0, 100)
		req.NoError(err)
		req.NotNil(read)
		req.Empty(read)
	})

	t.Run("should number each room independently", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t, time.Now)

		for i := 1; i <= 3; i++ {
			m, err := repo.Append(ctx, "a", fmt.Sprintf("a-%d", i))
			req.NoError(err)
			req.Equal(int64(i), m.SequenceId)
		}
		m, err := repo.Append(ctx, "b", "b-1")
		req.NoError(err)
		req.Equal(int64(1), m.SequenceId)

		countA, err := repo.Count(ctx, "a")
		req.NoError(err)
		req.Equal(3, countA)
		countB, err := repo.Count(ctx, "b")
		req.NoError(err)
		req.Equal(1, countB)
	})

	t.Run("should page newest first", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t, time.Now)

		for i := 1; i <= 7; i++ {
			_, err := repo.Append(ctx, "paged", fmt.Sprintf("m%d", i))
			req.NoError(err)
		}

		first, err := repo.Read(ctx, "paged", 0, 3)
		req.NoError(err)
		req.Equal([]string{"m7", "m6", "m5"}, contents(first))

		second, err := repo.Read(ctx, "paged", 3, 3)
		req.NoError(err)
		req.Equal([]string{"m4", "m3", "m2"}, contents(second))

		last, err := repo.Read(ctx, "paged", 6, 3)
		req.NoError(err)
		req.Equal([]string{"m1"}, contents(last))
		req.Equal(int64(1), last[0].SequenceId)

		beyond, err := repo.Read(ctx, "paged", 7, 3)
		req.NoError(err)
		req.Empty(beyond)

		none, err := repo.Read(ctx, "paged", 0, 0)
		req.NoError(err)
		req.Empty(none)
	})

	t.Run("should keep content verbatim", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t, time.Now)

		content := "pipes | and\nnewlines | ünïcode"
		_, err := repo.Append(ctx, "verbatim", content)
		req.NoError(err)

		read, err := repo.Read(ctx, "verbatim", 0, 1)
		req.NoError(err)
		req.Len(read, 1)
		req.Equal(content, read[0].Content)
	})

	t.Run("should never move the room clock backwards", func(t *testing.T) {
		req := require.New(t)
		clock := &frozenClock{at: base}
		repo := newRepo(t, clock.now)

		first, err := repo.Append(ctx, "clock", "first")
		req.NoError(err)

		clock.set(base.Add(-time.Hour))
		second, err := repo.Append(ctx, "clock", "second")
		req.NoError(err)
		req.False(second.CreatedAt.Before(first.CreatedAt))
		req.Equal(first.SequenceId+1, second.SequenceId)
	})

	t.Run("should assign dense sequence ids under concurrent appends", func(t *testing.T) {
		req := require.New(t)
		repo := newRepo(t, time.Now)

		const writers, perWriter = 8, 10
		rooms := []string{"busy", "other"}
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter*len(rooms))
		for _, room := range rooms {
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(room string, w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						if _, err := repo.Append(ctx, room, fmt.Sprintf("%d-%d", w, i)); err != nil {
							errs <- err
						}
					}
				}(room, w)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		for _, room := range rooms {
			count, err := repo.Count(ctx, room)
			req.NoError(err)
			req.Equal(writers*perWriter, count)

			all, err := repo.Read(ctx, room, 0, writers*perWriter)
			req.NoError(err)
			req.Len(all, writers*perWriter)
			for i, m := range all {
				req.Equal(int64(writers*perWriter-i), m.SequenceId)
				if i > 0 {
					req.False(m.CreatedAt.After(all[i-1].CreatedAt))
				}
			}
		}
	})
}

func contents(messages []entity.Message) []string {
	return lo.Map(messages, func(m entity.Message, _ int) string { return m.Content })
}
