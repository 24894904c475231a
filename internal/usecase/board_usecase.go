package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"msgboard/internal/entity"
	"msgboard/internal/repository"
	"msgboard/pkg/csrf"
	"msgboard/pkg/paginator"
)

var (
	ErrRateLimited  = errors.New("too many requests")
	ErrInvalidToken = errors.New("invalid anti-forgery token")
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrInvalidRoom  = errors.New("room is required")
)

type RateLimiter interface {
	Admit(identity string, now time.Time) bool
}

type SubmitRequest struct {
	Room     string
	Identity string
	Content  string
	Token    string
	Session  string
	Now      time.Time
}

type FetchRequest struct {
	Room     string
	Identity string
	Page     int
	Now      time.Time
}

type BoardUsecase interface {
	// Submit stores a message and returns the room's first page.
	Submit(ctx context.Context, req SubmitRequest) (entity.PageView, error)
	// FetchPage returns one page of a room, charged against the caller's rate budget.
	FetchPage(ctx context.Context, req FetchRequest) (entity.PageView, error)
	// View returns one page of a room without touching the rate limiter.
	View(ctx context.Context, room string, page int) (entity.PageView, error)
	// Token is the anti-forgery token forms must echo back.
	Token(session string) (string, error)
}

type boardUsecase struct {
	messageRepo    repository.MessageRepository
	limiter        RateLimiter
	guard          csrf.Guard
	pageSize       int
	storageTimeout time.Duration
}

func NewBoardUsecase(
	messageRepo repository.MessageRepository,
	limiter RateLimiter,
	guard csrf.Guard,
	pageSize int,
	storageTimeout time.Duration,
) BoardUsecase {
	if pageSize <= 0 {
		pageSize = paginator.DefaultPageSize
	}
	return &boardUsecase{
		messageRepo:    messageRepo,
		limiter:        limiter,
		guard:          guard,
		pageSize:       pageSize,
		storageTimeout: storageTimeout,
	}
}

func (u *boardUsecase) Submit(ctx context.Context, req SubmitRequest) (entity.PageView, error) {
	if strings.TrimSpace(req.Room) == "" {
		return entity.PageView{}, ErrInvalidRoom
	}

	if !u.limiter.Admit(req.Identity, req.Now) {
		log.Printf("Rate limited submit from %s in room %q", req.Identity, req.Room)
		return entity.PageView{}, ErrRateLimited
	}

	if !u.guard.Validate(req.Session, req.Token) {
		log.Printf("Invalid anti-forgery token from %s in room %q", req.Identity, req.Room)
		return entity.PageView{}, ErrInvalidToken
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return entity.PageView{}, ErrEmptyMessage
	}

	storageCtx, cancel := u.storageContext(ctx)
	_, err := u.messageRepo.Append(storageCtx, req.Room, content)
	cancel()
	if err != nil {
		return entity.PageView{}, err
	}

	return u.page(ctx, req.Room, 1)
}

func (u *boardUsecase) FetchPage(ctx context.Context, req FetchRequest) (entity.PageView, error) {
	if strings.TrimSpace(req.Room) == "" {
		return entity.PageView{}, ErrInvalidRoom
	}

	if !u.limiter.Admit(req.Identity, req.Now) {
		log.Printf("Rate limited fetch from %s in room %q", req.Identity, req.Room)
		return entity.PageView{}, ErrRateLimited
	}

	return u.page(ctx, req.Room, req.Page)
}

func (u *boardUsecase) View(ctx context.Context, room string, page int) (entity.PageView, error) {
	if strings.TrimSpace(room) == "" {
		return entity.PageView{}, ErrInvalidRoom
	}
	return u.page(ctx, room, page)
}

func (u *boardUsecase) Token(session string) (string, error) {
	return u.guard.Token(session)
}

func (u *boardUsecase) page(ctx context.Context, room string, requested int) (entity.PageView, error) {
	storageCtx, cancel := u.storageContext(ctx)
	defer cancel()

	total, err := u.messageRepo.Count(storageCtx, room)
	if err != nil {
		return entity.PageView{}, err
	}

	w := paginator.Resolve(total, requested, u.pageSize)
	items, err := u.messageRepo.Read(storageCtx, room, w.Offset, w.Limit)
	if err != nil {
		return entity.PageView{}, err
	}

	return entity.PageView{
		Items:      items,
		Page:       w.Page,
		TotalPages: w.TotalPages,
	}, nil
}

func (u *boardUsecase) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.storageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.storageTimeout)
}
