package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"task-server/apperr"
	"task-server/entities"
)

// DefaultTTL is how long an issued session token stays valid.
const DefaultTTL = 24 * time.Hour

// Carrier hands over the raw token from wherever a surface found it.
// Carriers only extract; they never verify.
type Carrier interface {
	Token() (string, bool)
}

// CookieCarrier reads a named cookie from a request.
type CookieCarrier struct {
	Request *http.Request
	Name    string
}

func (c CookieCarrier) Token() (string, bool) {
	if c.Request == nil {
		return "", false
	}
	cookie, err := c.Request.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// HandshakeCarrier reads the auth field of a session handshake: the "token"
// query parameter, then an Authorization bearer header, then the cookie.
type HandshakeCarrier struct {
	Request    *http.Request
	CookieName string
}

func (c HandshakeCarrier) Token() (string, bool) {
	if c.Request == nil {
		return "", false
	}
	if tok := strings.TrimSpace(c.Request.URL.Query().Get("token")); tok != "" {
		return tok, true
	}
	if h := c.Request.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, true
		}
	}
	return CookieCarrier{Request: c.Request, Name: c.CookieName}.Token()
}

type cookieTokenKey struct{}

// WithCookieToken stashes the session cookie value in a query execution context.
func WithCookieToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, cookieTokenKey{}, token)
}

// QueryContextCarrier reads the cookie value stashed by WithCookieToken.
type QueryContextCarrier struct {
	Ctx context.Context
}

func (c QueryContextCarrier) Token() (string, bool) {
	if c.Ctx == nil {
		return "", false
	}
	tok, _ := c.Ctx.Value(cookieTokenKey{}).(string)
	return tok, tok != ""
}

// Authenticator is the one verification routine behind every surface.
type Authenticator struct {
	codec TokenCodec
	ttl   time.Duration
	now   func() time.Time
}

func NewAuthenticator(codec TokenCodec, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authenticator{codec: codec, ttl: ttl, now: time.Now}
}

// Authenticate verifies the carrier's token and returns its Principal.
func (a *Authenticator) Authenticate(c Carrier) (entities.Principal, error) {
	token, ok := c.Token()
	if !ok {
		return entities.Principal{}, apperr.ErrUnauthenticated
	}
	p, err := a.codec.Verify(token)
	if err != nil {
		return entities.Principal{}, apperr.Wrap(apperr.InvalidToken, err)
	}
	return p, nil
}

// Issue signs a fresh token for user, valid for the configured TTL.
func (a *Authenticator) Issue(user entities.User) (string, error) {
	now := a.now()
	return a.codec.Sign(entities.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		IssuedAt:  now,
		ExpiresAt: now.Add(a.ttl),
	})
}

func (a *Authenticator) TTL() time.Duration { return a.ttl }
