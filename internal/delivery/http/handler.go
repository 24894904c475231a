package http

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"msgboard/internal/entity"
	"msgboard/internal/repository"
	"msgboard/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// BoardPage is what the rendering layer needs for a room: the page plus the
// token its post form must carry.
type BoardPage struct {
	Room      string `json:"room"`
	CsrfToken string `json:"csrfToken,omitempty"`
	entity.PageView
}

type PostCommentRequest struct {
	Message   string `json:"message"`
	CsrfToken string `json:"csrfToken"`
}

type BoardHandler struct {
	boardUc     usecase.BoardUsecase
	defaultRoom string
	now         func() time.Time
}

func NewBoardHandler(boardUc usecase.BoardUsecase, defaultRoom string) *BoardHandler {
	return &BoardHandler{
		boardUc:     boardUc,
		defaultRoom: defaultRoom,
		now:         time.Now,
	}
}

// Method Get /
func (h *BoardHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+url.PathEscape(h.defaultRoom), http.StatusTemporaryRedirect)
}

// Method Get /{room}
func (h *BoardHandler) Index(w http.ResponseWriter, r *http.Request) {
	room := roomParam(r)
	page, ok := pageParam(w, r)
	if !ok {
		return
	}

	view, err := h.boardUc.View(r.Context(), room, page)
	if err != nil {
		writeError(w, "View", err)
		return
	}

	token, err := h.boardUc.Token(SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, "Token", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "success",
		Data:    BoardPage{Room: room, CsrfToken: token, PageView: view},
	})
}

// Method Get /{room}/comments
func (h *BoardHandler) Comments(w http.ResponseWriter, r *http.Request) {
	room := roomParam(r)
	page, ok := pageParam(w, r)
	if !ok {
		return
	}

	view, err := h.boardUc.FetchPage(r.Context(), usecase.FetchRequest{
		Room:     room,
		Identity: ClientIdentity(r),
		Page:     page,
		Now:      h.now(),
	})
	if err != nil {
		writeError(w, "Fetch page", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "success",
		Data:    BoardPage{Room: room, PageView: view},
	})
}

// Method Post /{room}/post-comment
func (h *BoardHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	room := roomParam(r)

	req, err := decodePostComment(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	view, err := h.boardUc.Submit(r.Context(), usecase.SubmitRequest{
		Room:     room,
		Identity: ClientIdentity(r),
		Content:  req.Message,
		Token:    req.CsrfToken,
		Session:  SessionFromContext(r.Context()),
		Now:      h.now(),
	})
	if err != nil {
		writeError(w, "Submit", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "success",
		Data:    BoardPage{Room: room, PageView: view},
	})
}

// decodePostComment accepts the HTML form encoding (message, csrf_token)
// as well as a JSON body.
func decodePostComment(r *http.Request) (PostCommentRequest, error) {
	var req PostCommentRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Message = r.PostForm.Get("message")
	req.CsrfToken = r.PostForm.Get("csrf_token")
	return req, nil
}

func roomParam(r *http.Request) string {
	room := chi.URLParam(r, "room")
	if unescaped, err := url.PathUnescape(room); err == nil {
		return unescaped
	}
	return room
}

func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid page"})
		return 0, false
	}
	return page, true
}

func writeError(w http.ResponseWriter, op string, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, usecase.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = "too many requests"
	case errors.Is(err, usecase.ErrInvalidToken):
		statusCode = http.StatusForbidden
		message = "invalid csrf token"
	case errors.Is(err, usecase.ErrEmptyMessage):
		statusCode = http.StatusBadRequest
		message = "message cannot be empty"
	case errors.Is(err, usecase.ErrInvalidRoom):
		statusCode = http.StatusBadRequest
		message = "room is required"
	case errors.Is(err, repository.ErrStorageUnavailable):
		log.Printf("%s error: %v", op, err)
		statusCode = http.StatusServiceUnavailable
		message = "storage unavailable"
	default:
		log.Printf("%s error: %v", op, err)
	}

	writeJSON(w, statusCode, Response{Message: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Encode response error: %v", err)
	}
}
