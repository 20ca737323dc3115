package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("session: bearer token missing")
	// ErrSessionExpired indicates the token expiry has passed.
	ErrSessionExpired = errors.New("session: token expired")
	// ErrInvalidToken indicates the token failed signature or claim checks.
	ErrInvalidToken = errors.New("session: invalid token")
)

// User identifies the operator behind a session.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Settings are the tenant preferences the ledger needs.
type Settings struct {
	BusinessName string `json:"business_name"`
	Region       string `json:"region"`
	Currency     string `json:"currency"`
}

// Session is the explicit auth context handed to services and API clients.
type Session struct {
	Token     string
	TenantID  string
	User      User
	Settings  Settings
	ExpiresAt time.Time
}

// Authorization renders the header value used against the backoffice API.
func (s *Session) Authorization() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

type sessionClaims struct {
	UserID       any    `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	TenantID     any    `json:"tenant_id"`
	BusinessName string `json:"business_name"`
	Region       string `json:"region"`
	Currency     string `json:"currency"`
	jwt.RegisteredClaims
}

// SessionManager builds sessions from bearer tokens.
type SessionManager struct {
	secret   []byte
	defaults Settings
	now      func() time.Time
}

// NewSessionManager constructs a SessionManager. When secret is empty tokens are
// decoded without signature verification and the backoffice API stays the
// authority on their validity.
func NewSessionManager(secret string, defaults Settings) *SessionManager {
	return &SessionManager{secret: []byte(secret), defaults: defaults, now: time.Now}
}

// FromRequest extracts the session from the Authorization header.
func (sm *SessionManager) FromRequest(r *http.Request) (*Session, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		token, ok = strings.CutPrefix(header, "bearer ")
	}
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return sm.Parse(strings.TrimSpace(token))
}

// Parse decodes a token into a Session.
func (sm *SessionManager) Parse(token string) (*Session, error) {
	var claims sessionClaims
	if len(sm.secret) > 0 {
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return sm.secret, nil
		}, jwt.WithTimeFunc(sm.now))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrSessionExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !parsed.Valid {
			return nil, ErrInvalidToken
		}
		return sm.build(token, claims), nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		// opaque tokens are forwarded untouched
		return &Session{Token: token, Settings: sm.defaults}, nil
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(sm.now()) {
		return nil, ErrSessionExpired
	}
	return sm.build(token, claims), nil
}

func (sm *SessionManager) build(token string, claims sessionClaims) *Session {
	sess := &Session{
		Token:    token,
		TenantID: stringify(claims.TenantID),
		User: User{
			ID:   stringify(claims.UserID),
			Name: claims.Name,
			Role: claims.Role,
		},
		Settings: sm.defaults,
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Subject
	}
	if claims.BusinessName != "" {
		sess.Settings.BusinessName = claims.BusinessName
	}
	if claims.Region != "" {
		sess.Settings.Region = claims.Region
	}
	if claims.Currency != "" {
		sess.Settings.Currency = claims.Currency
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprint(val)
	}
}
