package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	ModeProcess = "process"
	ModeSession = "session"
)

var ErrUnknownMode = errors.New("unknown anti-forgery mode")

// Guard issues the token a form must echo back and checks submitted tokens.
// The session argument is ignored by guards that are not session scoped.
type Guard interface {
	Token(session string) (string, error)
	Validate(session, supplied string) bool
}

// ProcessGuard holds one token for the whole process lifetime. It never
// expires or rotates.
type ProcessGuard struct {
	token string
}

func NewProcessGuard() (*ProcessGuard, error) {
	token, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	return &ProcessGuard{token: token}, nil
}

// NewStaticGuard pins the process token, mainly for tests.
func NewStaticGuard(token string) *ProcessGuard {
	return &ProcessGuard{token: token}
}

func (g *ProcessGuard) CurrentToken() string {
	return g.token
}

func (g *ProcessGuard) Token(string) (string, error) {
	return g.token, nil
}

func (g *ProcessGuard) Validate(_, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(g.token)) == 1
}

// New builds the guard for mode. secret only applies to ModeSession.
func New(mode string, secret string) (Guard, error) {
	switch mode {
	case "", ModeProcess:
		return NewProcessGuard()
	case ModeSession:
		return NewSessionGuard(secret)
	default:
		return nil, ErrUnknownMode
	}
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
