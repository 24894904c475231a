package csrf

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var ErrMissingSession = errors.New("session required")

const keyInfo = "msgboard anti-forgery v1"

type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionGuard binds each token to a session id: a token minted for one
// session fails validation for every other one. Tokens carry no expiry, like
// the process-wide token.
type SessionGuard struct {
	key []byte
	now func() time.Time
}

// NewSessionGuard derives the signing key from secret. An empty secret
// yields a random key, so tokens do not survive a restart.
func NewSessionGuard(secret string) (*SessionGuard, error) {
	master := []byte(secret)
	if len(master) == 0 {
		master = make([]byte, 32)
		if _, err := rand.Read(master); err != nil {
			return nil, err
		}
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return &SessionGuard{key: key, now: time.Now}, nil
}

func (g *SessionGuard) Token(session string) (string, error) {
	if session == "" {
		return "", ErrMissingSession
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  session,
			IssuedAt: jwt.NewNumericDate(g.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
}

func (g *SessionGuard) Validate(session, supplied string) bool {
	if session == "" || supplied == "" {
		return false
	}
	token, err := jwt.ParseWithClaims(supplied, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return g.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(session),
	)
	return err == nil && token.Valid
}
